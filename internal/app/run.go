package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/romariotrain/reelwork/internal/log"
)

type Runner func(ctx context.Context) error

// Run executes run until it returns or the process receives SIGINT/SIGTERM,
// and converts the outcome into a process exit code.
func Run(serviceName string, run Runner) int {
	logger := log.WithComponent(serviceName)
	logger.Info().Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		// даём runner'у закрыть соединения
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error().Err(err).Msg("shutdown finished with error")
				return 1
			}
		case <-time.After(15 * time.Second):
			logger.Warn().Msg("shutdown grace period elapsed")
		}
		return 0
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("failed")
			return 1
		}
		logger.Info().Msg("stopped")
		return 0
	}
}
