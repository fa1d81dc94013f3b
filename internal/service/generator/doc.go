// Package generator builds the allow-lists from a membership table.
//
// The table is a CSV export whose header row starts with RFID followed by
// one column per allow-list. A "y" cell grants the row's tags access to
// that list. A marker file prevents two generators from writing the list
// directory at the same time.
package generator
