// Package session keeps per-user conversation state in memory.
//
// Each user has exactly one Session. Callers obtain mutable access through a
// Lease, which serializes work for the same user in arrival order while
// leaving other users unaffected. Sessions are never persisted.
package session
