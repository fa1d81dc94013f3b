// Package serial opens a tty in raw mode at a fixed baud rate and exposes it
// as a byte source for the tag reader.
package serial
