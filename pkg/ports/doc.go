/*
Package ports defines the driven ports (interfaces) of the redo engine.

These interfaces decouple the workflow runner from the storage of its logs,
so the same run can persist to JSON files, memory or Redis.

# Key Interfaces

  - LogStore: persists and loads the log tree of a named workflow.
  - Locker: guards the load, run, save cycle against concurrent invocations.
*/
package ports
