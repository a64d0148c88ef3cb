package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/portainer-templates/tplmerge/cmd/tplmerge/root"
	"github.com/portainer-templates/tplmerge/internal/console"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.NewCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		console.New(os.Stderr).Failf("%v", err)
		os.Exit(1)
	}
}
