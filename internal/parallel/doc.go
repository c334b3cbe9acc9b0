// Package parallel runs per-task operations with bounded concurrency.
//
// The CLI uses a Pool when one command touches several tasks (`taskboard rm 1 2 3`,
// `taskboard mv 1 2 --to done`). Results come back in submission order so
// output lines up with the ids the user typed.
package parallel
