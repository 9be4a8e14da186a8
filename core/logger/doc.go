// Package logger is the shell's event log: one newline delimited JSON record
// per pipeline run, rejected line or builtin, tagged with a session ID.
package logger
