// Package generation contains the record of an allow-list generation run.
//
// Status describes when lists were last generated, whether the run
// succeeded, and how many tags each list received. Clone helpers avoid
// leaking internal references between the generator and its readers.
package generation
