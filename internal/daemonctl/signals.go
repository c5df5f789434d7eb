package daemonctl

import (
	"os"
	"os/signal"
	"syscall"
)

// WatchShutdownSignals returns a channel that receives exactly one value
// when SIGTERM or SIGINT arrives. SIGHUP and SIGPIPE are explicitly
// ignored rather than left at their default disposition, since a
// backgrounded daemon has no controlling terminal to hang up and no
// interactive pipe to break.
func WatchShutdownSignals() <-chan os.Signal {
	signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, syscall.SIGINT)
	return shutdown
}
