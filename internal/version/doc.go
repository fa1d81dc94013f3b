// Package version exposes build metadata shared by the door controller, the
// auth server and the allow-list generator.
//
// Version, Commit and BuildTime are set with -ldflags "-X ..." at build time.
package version
