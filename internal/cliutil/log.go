// Package cliutil holds small cross-cutting helpers shared by the CLI
// and the runner: leveled stderr logging and desktop notification.
package cliutil

import (
	"fmt"
	"os"
)

var verbose = false

// SetVerbose enables debug-level logging, mirroring the teacher's
// -debug flag gated Debugf.
func SetVerbose(v bool) {
	verbose = v
}

// Debugf logs at debug level; suppressed unless verbose logging is on.
func Debugf(format string, v ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "bubblejail: debug: "+format+"\n", v...)
	}
}

// Errorf logs the single-line "bubblejail: <kind>: <detail>" form spec.md
// §7 requires for every surfaced failure.
func Errorf(err error) {
	fmt.Fprintf(os.Stderr, "bubblejail: %v\n", err)
}
