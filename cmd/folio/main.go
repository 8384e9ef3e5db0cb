// Command folio is the terminal client of the folio portal. It shares the
// portal's session, cache and storage, so a login here is a login there.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/session"
)

func main() {
	config.LoadVersionFromFile()
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, in io.Reader, out, errOut io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, session.ErrSessionExpired):
		fmt.Fprintln(errOut, "session expired, please log in again")
	case errors.Is(err, session.ErrNotAuthenticated):
		fmt.Fprintln(errOut, "not logged in, run `folio login` first")
	default:
		fmt.Fprintf(errOut, "Error: %v\n", err)
	}
	return 1
}
