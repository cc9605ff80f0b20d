// Package snapshot round-trips the whole inventory tree to a flat file.
//
// The on-disk form is a pre-order walk with a fixed little-endian record
// layout, so reconstruction can build each lot before reading its
// children and reproduces the exact tree shape. A sentinel expiry of -1
// stands in for every absent child.
//
// Loading is all-or-nothing: a truncated or malformed file aborts the
// load, returns every partially built order to the pool, and leaves the
// live tree untouched.
package snapshot
