// Package logger wraps zap for the access-control binaries.
//
// A global sugared logger with a console encoder is created at init and can
// be replaced with SetLogger, for example by one that also writes to a
// rotated file (NewWithFile). Callers carry named or field-enriched loggers
// in a context (WithName, WithKV) and log through the package functions
// (Infof, WarnKV, ...), which pick the logger out of the context.
package logger
