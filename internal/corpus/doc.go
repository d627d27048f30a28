// Package corpus scans and validates the raw image collection.
//
// The raw corpus is a directory tree with one subdirectory per class, each
// holding image files collected upstream. Scanning walks every class
// directory, decodes each candidate file to prove it is readable, records
// pixel dimensions, and drops corrupt, unreadable or undersized files as
// counted validation errors rather than run failures.
//
// # Image Cache
//
// Decoding is the expensive part of both validation and layout building, so
// the package provides a bounded LRU cache of decoded images keyed by file
// path. The cache is safe for concurrent use; capacity bounds memory for
// large corpora.
//
// # Error Handling
//
// A single bad file produces a *ValidationError that is logged and counted.
// Scan only fails outright when the raw directory itself cannot be read.
package corpus
