// Package wal is the append-only journal of inventory mutations. Every
// insert, dispatch, cancel and removal is framed as
// [len:4][crc32:4][payload] and appended to current.wal; full or aged
// segments rotate out under sequence-indexed names tracked in
// wal_index.json. Reopening truncates any torn tail frame.
//
// A snapshot save supersedes the journal, so a checkpoint resets it.
package wal
