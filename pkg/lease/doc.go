// Package lease guards the load, run, save cycle on a stored workflow log.
//
// Stores replace logs atomically, but two invocations that both load the
// same log and save their own result would still lose one of the runs.
// The Manager closes that window with a per-name mutex and, when configured,
// a ports.Locker shared with other processes.
package lease
