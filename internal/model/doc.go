// Package model holds the state shared between the simulation worker and the
// presentation context.
//
// # Inputs
//
// Pause, speed, reset requests, the control set and the style table are
// written by the presentation side. The worker copies them once per tick with
// TakeInputs, so presentation edits never interleave with a tick.
//
// # Outputs
//
// Status and render snapshots are published by the worker as immutable values
// behind atomic pointers. Readers may hold on to what they load; a newer value
// replaces the pointer, never the contents.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Observers registered with Observe
// are called without model locks held and must not block. Status, fault,
// reset and snapshot changes arrive on the worker goroutine; control field
// changes arrive on whichever goroutine made the edit.
package model
