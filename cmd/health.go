// -- cmd/health.go --
package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/automate-cli/internal/automation"
)

type healthOptions struct {
	watch    bool
	interval time.Duration
	count    int
}

func newHealthCmd(root *rootOptions) *cobra.Command {
	opts := healthOptions{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Checks whether the automation engine is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := root.newService(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				opts.interval = cfg.Automation().HealthInterval
			}
			return runHealth(cmd.Context(), newPrinter(cmd.OutOrStdout(), root.output), svc, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "keep polling the engine")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "polling interval with --watch (default automation.health_interval)")
	cmd.Flags().IntVar(&opts.count, "count", 0, "stop after this many checks with --watch (0 means until interrupted)")
	return cmd
}

// runHealth checks once, or polls at opts.interval when watching. A single
// failed check is an error; a watch only ends on count or cancellation.
func runHealth(ctx context.Context, p *printer, svc automation.Service, opts healthOptions) error {
	if !opts.watch {
		healthy := svc.CheckHealth(ctx)
		if err := p.health(svc.Endpoint(), healthy, svc.State()); err != nil {
			return err
		}
		if !healthy {
			return errSilentFailure
		}
		return nil
	}

	if opts.interval <= 0 {
		return errors.New("--interval must be positive")
	}
	limiter := rate.NewLimiter(rate.Every(opts.interval), 1)

	for i := 0; opts.count == 0 || i < opts.count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			// Cancellation, or a deadline the next tick would overrun.
			return nil
		}
		healthy := svc.CheckHealth(ctx)
		if err := p.health(svc.Endpoint(), healthy, svc.State()); err != nil {
			return err
		}
	}
	return nil
}
