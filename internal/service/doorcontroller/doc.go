// Package doorcontroller wires a tag reader, the access client and the GPIO
// backend into a running door controller, and provides the tag monitor used
// to debug a reader without touching the door.
package doorcontroller
