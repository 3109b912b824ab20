package velocilog

import (
	"fmt"
	"os"

	"github.com/nyxlabs/velocilog/internal/proc"
	"github.com/nyxlabs/velocilog/internal/writer"
)

// init checks whether this process is a writer re-exec — spawned by
// Logger.Open/OpenStdOut as a copy of the host binary carrying
// proc.EnvMarker — before the host application's own main ever runs.
// Go runs every imported package's init before main, which is exactly
// what gives a privately re-exec'd copy of the host binary a chance to
// divert into the writer loop and exit without the host's main doing
// anything: the "private argv marker" spec.md §4.3 and §9 call for, done
// with an environment variable instead of argv so the host's own flag
// parsing is never disturbed.
func init() {
	args, ok, err := proc.DecodeSelfArgs()
	if !ok {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "velocilog writer: bad bootstrap args: %v\n", err)
		os.Exit(1)
	}
	os.Exit(writer.Run(args))
}
