package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/speechscope/cmd"
	"github.com/tphakala/speechscope/internal/buildinfo"
	"github.com/tphakala/speechscope/internal/conf"
)

// version and buildDate are set at build time with -ldflags -X.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := &buildinfo.Context{Version: version, BuildDate: buildDate}
	if err := cmd.RootCommand(settings, build).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
