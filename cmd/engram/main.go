package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/engramlab/engram/internal/cli"
	"github.com/engramlab/engram/internal/tracing"
)

func main() {
	if err := tracing.InitOpenTelemetry("engram"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize tracing: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracing.ShutdownOpenTelemetry(ctx)
	}()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
