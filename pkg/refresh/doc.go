// Package refresh defines the types used by the panel refresh routine.
// It contains:
//
//   - Status: the discrete states of the refresh session state machine
//   - Phase: one weighted segment of the routine (solid flash or sweep bar)
//   - Session: the in-memory runtime state owned by the daemon
//   - InterruptedState: the persisted resume marker
//   - Report: a synthesized view model returned by HTTP APIs and the CLI
//
// These types are shared across daemon, client and CLI code to avoid
// duplicate definitions and keep JSON contracts consistent.
package refresh
