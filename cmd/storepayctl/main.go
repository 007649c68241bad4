// Command storepayctl runs operator tasks against the payment database without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/storepay/internal/app"
	"github.com/fatflowers/storepay/internal/app/service/order"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
)

var Version = "dev"

// services is what the commands operate on.
type services struct {
	Reconcile *reconcile.Service
	Orders    *order.Service
}

// runner hands the services to fn for the lifetime of one command.
type runner func(ctx context.Context, fn func(ctx context.Context, s services) error) error

// runApp boots the core graph, hands the services to fn and shuts the graph down again.
func runApp(ctx context.Context, fn func(ctx context.Context, s services) error) error {
	var s services
	a := fx.New(app.CoreModule, fx.NopLogger, fx.Populate(&s.Reconcile, &s.Orders))

	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	runErr := fn(ctx, s)

	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil && runErr == nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(run runner) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "storepayctl",
		Short:        "Operator tasks for storepay payments",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(reconcileCmd(run))
	rootCmd.AddCommand(repairStatusesCmd(run))
	rootCmd.AddCommand(archiveOrderCmd(run))
	rootCmd.AddCommand(overrideCmd(run))
	return rootCmd
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(runApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
