// Command bibsearch searches and indexes bibliographic libraries.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/bibsearch/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err == nil {
		return
	}
	// Commands report their own ExitErrors; usage errors are printed here.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
