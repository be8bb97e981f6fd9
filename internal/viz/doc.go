// Package viz is the terminal presentation context for a running session.
//
// The package implements a Bubble Tea program over the shared model:
//
//   - [App]: status panel, temperature graph and a projected view of the box
//   - [Canvas]: Braille-based pixel canvas with per-cell color
//   - [Camera]: orbit projection of snapshot coordinates
//
// The App never touches the engine. Edits go through model inputs and
// controls; faults and resets arrive as [ChangeMsg] via [Forward], and
// status and snapshots are polled on each frame.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Reset and reload the script
//	+/-   - Double/halve engine steps per tick
//	T     - Toggle the thermostat
//	Up/Dn - Adjust thermostat target
//	1-9   - Toggle atom type visibility
//	C     - Cycle color themes
//	?     - Show help overlay
package viz
