package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/chartx/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrAborted) {
			logger.Warn("aborted")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
