// Package shell is the interactive front end of tsh.
//
// For every line it reads, the shell:
//
//  1. Splits the line into words, honoring quotes and backslash escapes.
//     Operators must be separated from their neighbors by whitespace.
//  2. Drops a trailing "&". Pipelines always run in the foreground.
//  3. Runs the line itself if the first word names a builtin.
//  4. Otherwise scans the words into a pipeline, runs it and waits for every
//     stage to finish.
//
// The status of a line is the status of the last stage of its pipeline.
package shell
