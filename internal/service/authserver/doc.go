// Package authserver runs the allow-list authorization service.
//
// It answers access checks from door controllers over HTTP, appends every
// check to the monthly access log, serves the lists themselves, and can
// regenerate them in-process. A gRPC health service reports readiness.
package authserver
