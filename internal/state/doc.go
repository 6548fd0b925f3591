// Package state persists the daemon's durable record of uploaded files and
// tracked remote assets in a local SQLite database. The store survives
// restarts so the watcher does not resubmit files it already uploaded and
// the poller does not re-download assets it already fetched.
package state
