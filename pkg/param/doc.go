/*
Package param implements the change-detection model of redo.

A Parameter is a dependency whose state is captured as a serializable snapshot
(its log value). A task reruns when the snapshot of any of its inputs or
outputs differs from the one stored in the log after its last successful run.

Snapshots are always compared in canonical JSON form, because the persisted
log loses native sequence and number types.

# Variants

  - Value: a plain value; the snapshot is the value itself.
  - File: a filesystem target; the snapshot is [path, modification time].
  - Source: a piece of text or Go code; the snapshot is a content digest.
  - Self: the Go source of a task definition type.
*/
package param
