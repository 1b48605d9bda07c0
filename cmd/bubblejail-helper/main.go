// Command bubblejail-helper is bwrap's PID 1 inside the sandbox
// (spec.md §4.4, C8). The Runner passes it a pre-opened, already
// listening UNIX socket fd via the BUBBLEJAIL_HELPER_FD environment
// variable (runner/argv.go's HelperFDEnv); the helper wraps that fd
// and serves the framed control protocol until it receives SHUTDOWN,
// the child started by the first RUN exits, or accepting on the socket
// fails.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bubblejail/bubblejail/internal/helper"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bubblejail-helper: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fdStr := os.Getenv("BUBBLEJAIL_HELPER_FD")
	if fdStr == "" {
		return fmt.Errorf("BUBBLEJAIL_HELPER_FD not set")
	}
	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		return fmt.Errorf("invalid BUBBLEJAIL_HELPER_FD %q: %w", fdStr, err)
	}

	srv, err := helper.NewServerFromFD(fd)
	if err != nil {
		return err
	}
	return srv.Serve()
}
