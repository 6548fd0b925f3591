// Package preflight provides startup readiness checks for the directories,
// state database, disk space, and remote configuration the daemon depends
// on.
//
// The daemon runs RunAll before starting the pipeline and refuses to start
// when any check fails, reporting one line per failed check.
package preflight
