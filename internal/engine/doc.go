// Package engine defines the contract between the synchronization core and a
// stepwise particle engine.
//
// The engine itself is an external collaborator. The core only needs:
//
//   - [Engine]: submit commands, advance steps, query particle state
//   - [Directive]: a named, stateful behavior living inside the engine (fix, compute, variable)
//   - [Thermostat]: tunable parameters of a temperature-control fix
//   - [FindDirective]: typed lookup of the first active directive of a capability
//
// # Faults
//
// Engines report rejected commands and internal failures as [*Error]. The
// controller converts the first one into a [Fault], which is reported to the
// presentation context exactly once.
//
// # Thread Safety
//
// Engine instances are NOT thread-safe. They are owned by the worker goroutine
// and must never be touched by the presentation context.
package engine
