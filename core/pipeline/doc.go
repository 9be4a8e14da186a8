// Package pipeline turns a tokenized command line into a chain of OS
// processes connected by pipes and collects their termination status.
//
// A line is first split into stages by Scan. A Runner then allocates the
// connecting pipes, starts one process per stage in a shared process group,
// and waits for every member to exit.
//
// Each started process receives an explicit list of exactly three
// descriptors (stdin, stdout, stderr). Every pipe the runner allocates is
// close-on-exec, so a stage can never inherit a pipe end it does not use,
// and the runner releases its own copy of each end as soon as the stage it
// was handed to exists.
package pipeline
