// Package session serializes access to per-call state. The Manager owns the
// "one writer per call" invariant with reference-counted in-process locks,
// optionally extended across replicas by a distributed locker, and enforces
// the active-session capacity bound with explicit rejection.
package session
