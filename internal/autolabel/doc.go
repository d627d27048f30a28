// Package autolabel generates draft annotation files for a built dataset
// layout by bridging a generic detector's vocabulary onto the project's
// class set.
//
// For every image in the layout the engine runs the detector adapter, keeps
// detections that clear the confidence threshold and map to a target class,
// normalizes their boxes to YOLO center/size coordinates, and writes one
// label file per image. Zero kept detections still produce an empty label
// file: the training loader requires the image and label trees to match 1:1,
// and omitting the file would silently break that.
//
// Per-image detector failures and timeouts are logged, counted and treated
// as zero-detection samples. There is no retry; auto-labels are a draft for
// human review, so the policy is skip-and-continue with full accounting.
package autolabel
