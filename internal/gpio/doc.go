// Package gpio drives the door hardware outputs.
//
// Pins is the capability the sequence executor needs. Pins are physical
// header (board) numbers. Cdev drives them through the Linux GPIO character
// device; Console only logs what it would do and stands in on machines
// without GPIO.
package gpio
