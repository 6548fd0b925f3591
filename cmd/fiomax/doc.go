// Command fiomax is the Frame.io hot-folder automation CLI. It runs the
// upload/monitor daemon in the foreground and talks to a running daemon
// over its unix socket for status, state inspection, and notifications.
package main
