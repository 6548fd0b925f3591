// Package frameio defines the remote asset-service contract the automation
// core consumes, plus a thin bearer-token REST implementation of it. The core
// packages depend only on the Client interface so tests and alternative
// transports can substitute their own.
package frameio
