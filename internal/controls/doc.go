// Package controls bridges UI-editable parameters and live engine directives.
//
// Every [Control] follows the same dirty-flag protocol once per tick:
//
//   - dirty: the presentation context has an edit that must reach the engine
//   - clean: the engine is the source of truth and the control mirrors it
//
// A single Synchronize call either pushes (or creates/removes) or pulls,
// never both. Corrective commands are injected at the top of the script
// queue so the user's cursor is not disturbed.
//
// Controls are safe to edit from the presentation goroutine while the worker
// synchronizes them.
package controls
