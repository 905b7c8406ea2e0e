// Package services implements the driving port interfaces.
// Services contain the core build logic and orchestrate
// calls to driven ports (adapters).
//
// A build run is owned by a single coordinator goroutine. The enumerator,
// the dependency requestor, fragment workers and loader callers talk to it
// only through channels, so the file store, the pending-request table and
// the dependency index need no locks.
//
// Services are pure Go with no CGO dependencies.
package services
