// Command textscope-vis renders the reports of one stored text.
//
// Usage: textscope-vis <textId> [outputDir]
//
// Exit status is 0 when the reports were generated (warnings included), 2 on
// a usage error and 1 on any other failure.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cognicore/textscope/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := cli.NewVisCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.PrintError(os.Stderr, err)
	}
	os.Exit(cli.ExitCode(err))
}
