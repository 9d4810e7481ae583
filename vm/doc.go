// Package vm implements the enigma process runtime.
//
// This package contains:
//   - NaN-boxed term representation and per-process heaps
//   - The process table and PID allocation
//   - Processes, their mailboxes and the Token that grants access to them
//   - Spawn, message sending and the park/wake protocol
//   - A worker pool that runs processes through an Executor
package vm
