// Command curator is the operational entry point for the regulatory
// rule curation pipeline: release hashing, snapshot verification and
// staleness maintenance.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands.
//
// Exit codes:
//
//	0 = success
//	1 = domain failure (verification mismatch, sweep failures)
//	2 = usage or runtime error
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}
	switch args[1] {
	case "compose":
		return runCompose(args[2:], stdout, stderr)
	case "release-hash":
		return runReleaseHash(args[2:], stdout, stderr)
	case "verify-snapshot":
		return runVerifySnapshot(args[2:], stdout, stderr)
	case "deprecate-expired":
		return runDeprecateExpired(args[2:], stdout, stderr)
	case "verify-evidence":
		return runVerifyEvidence(args[2:], stdout, stderr)
	case "staleness":
		return runStaleness(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Error: unknown command %q\n\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: curator <command> [flags]")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Commands:")
	_, _ = fmt.Fprintln(w, "  compose            Run agent proposals through the composition pipeline")
	_, _ = fmt.Fprintln(w, "  release-hash       Compute the release hash of a rule set, optionally writing a snapshot")
	_, _ = fmt.Fprintln(w, "  verify-snapshot    Verify the integrity hash of a release snapshot")
	_, _ = fmt.Fprintln(w, "  deprecate-expired  Deprecate published rules whose effective window has closed")
	_, _ = fmt.Fprintln(w, "  verify-evidence    Re-check availability of evidence records that are due")
	_, _ = fmt.Fprintln(w, "  staleness          Show the staleness band for an evidence age and hierarchy")
}
