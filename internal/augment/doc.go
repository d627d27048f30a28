// Package augment derives stochastic variants of training images.
//
// A Pipeline is an ordered chain of transforms built from configuration.
// Each transform fires independently with its configured probability and
// draws its parameters (rotation angle, brightness delta, blur radius, ...)
// from the random source passed to Derive. Callers seed that source
// deterministically per image so that worker scheduling never changes the
// output.
//
// Augmentation applies to the training split only. Derived variants never
// reach the validation or test splits; letting synthetic copies of a
// training image leak there would bias evaluation optimistically.
//
// Unknown transform names are rejected when the pipeline is built, at
// configuration time, never silently skipped.
package augment
