// Command bookforge drives the book publication pipeline.
//
// The run command executes the content, cover, and assembly stages for
// a job file and writes the final manifest; --resume continues an
// interrupted run without redoing completed stages. status and cost
// read the run registry and the cumulative cost file at the output
// root. config init/show manage job files.
//
// Exit codes: 0 success, 2 configuration/credential/validation errors,
// 3 stage failures, 1 anything else.
package main
