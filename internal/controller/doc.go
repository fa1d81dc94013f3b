// Package controller is the door controller state machine.
//
// Controller receives rate-limited tag events, asks the authorization
// service about each one and starts the authorized or unauthorized action
// sequence. At most one sequence runs at a time: a tag that arrives while
// one is running is ignored, unless it is authorized and restarts are
// enabled, in which case the running sequence is cancelled and joined
// before the new one starts.
package controller
