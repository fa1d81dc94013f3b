// Package acl stores allow-lists as plain text files, one per list, and
// answers membership queries against them.
//
// A list named door lives in the file acl-door:
//
//	# Generated at 20240131T120000
//	1234
//	12345678
//
// Files are rewritten atomically with a SHA-512 checksum of the new content,
// so readers never see a partially written list.
package acl
