// cmd/wlprep/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/cli"
)

func main() {
	// Optional .env for local development; absence is fine
	_ = godotenv.Load()

	// Cancel the run context on interrupt so workers finish their current
	// item and counters are flushed instead of killing the process mid-write.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Warn().Msg("Interrupt received, shutting down gracefully...")
		cancel()
	}()

	// Execute CLI (app initialization happens inside cli.Execute)
	cli.Execute(ctx)
}
