// Package layout materializes the on-disk dataset consumed by training.
//
// The physical tree is the YOLO convention:
//
//	<root>/images/{train,val,test}/<class>/<stem>.jpg
//	<root>/labels/{train,val,test}/<class>/<stem>.txt
//
// Every image is re-encoded to JPEG and paired with exactly one label file
// sharing its stem, so the image tree and label tree stay in 1:1
// correspondence from the moment the layout exists. Until the auto-labeling
// pass replaces them, label files hold a single full-image box for the
// record's class hint.
//
// Training-split records additionally yield augmented variants named
// <stem>_aug_<i>.jpg; val and test never receive derived samples.
//
// A dataset.yaml manifest describing the class ordering, split roots and
// per-split counts is written last and overwritten on every run. It is the
// sole contract the external training process consumes.
//
// Failure semantics: an unreadable source image or a failed write is logged
// and counted but does not abort the run, unless it leaves an entire
// non-empty partition with no written images.
package layout
