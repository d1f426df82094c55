/*
Package domain contains the core data model of the redo engine.

It defines what a run leaves behind: the Record of a single task execution and
the recursive Log tree that mirrors the shape of the task tree. This package is
kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Record: the outcome of one task execution (snapshots, success flag, info).
  - Entry: one position of a log tree, either a Record or a nested Log.
  - Log: an ordered sequence of entries, persisted as a JSON array.
  - Index: the position path of a leaf, used for display and flattened keys.
  - LifecycleHooks: callbacks fired by the runner for observability.
*/
package domain
