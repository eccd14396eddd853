// Package store reads and rewrites single properties inside the text based
// configuration resource consumed by the tool under test.
//
// The resource is a plain file made of lines such as
//
//	app.stemmer = Porter
//
// Only lines whose name matches the requested property are touched. Every
// call loads the whole file and, for writes, rewrites it in full; all lines
// other than the targeted one are preserved byte for byte.
//
// There is no locking. The orchestrator is the only writer and runs one
// configuration at a time.
//
// # Restore points
//
// Before a sweep mutates anything, the original values are written to a
// restore point file. If the process is killed before it can put the
// original values back, `matrixctl restore` applies the restore point.
package store
