// Package sequence runs ordered, timed lists of hardware and log actions.
//
// A Sequence is parsed from configuration tuples such as "gpio.out,7,1" or
// "sleep,5000". Start runs it on its own goroutine and returns a Run that
// can be cancelled between steps; the owner is notified exactly once when
// the run ends, for whatever reason.
package sequence
