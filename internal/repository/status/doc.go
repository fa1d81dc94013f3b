// Package status implements persistence for the allow-list generation Status.
//
// The FileRepository stores and loads the status as JSON on disk and exposes a
// Repository interface that the generator and the auth server depend on.
package status
