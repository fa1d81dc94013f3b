// Package accesslog appends access check results to monthly log files.
package accesslog
