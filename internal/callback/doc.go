// Package callback bridges Go closures across native callback APIs that only
// carry a function pointer and one untyped context word.
//
// A closure is stored in a Context held by a Registry. The native side only
// ever sees the Context's Handle, an integer that packs a slot index with a
// generation counter, so a delivery against a released or recycled slot is
// detected and dropped instead of reaching freed state.
//
// Recurring registrations hand the caller a Token; the callback stays live
// exactly as long as the Token is unreleased. One-shot registrations are
// consumed by their single delivery and need no Token.
package callback
