// Package fault classifies the failures of the door controller.
//
// Components return ordinary Go errors wrapped in an *Error that carries a
// Class. Callers decide how to react by class rather than by unwinding:
// framing faults are logged and dropped, validator faults deny access,
// configuration faults abort startup, runtime faults end the process.
package fault
