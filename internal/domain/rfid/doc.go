// Package rfid contains the core domain types of the door controller.
//
// It defines Profile (the framing parameters of a reader model) and TagEvent
// (a validated tag read). Reader models are values, not types: Parallax and
// RDM6300 differ only in the numbers they carry.
package rfid
