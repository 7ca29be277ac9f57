// -- cmd/direct.go --
package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/automate-cli/internal/automation"
)

func newDirectCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "direct <objective...>",
		Short: "Lets the engine plan and execute an objective in one step",
		Example: `  automate-cli direct open calculator
  automate-cli direct "search for cats then press cmd+d"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := root.newService(cmd.Context())
			if err != nil {
				return err
			}
			return runDirect(cmd.Context(), newPrinter(cmd.OutOrStdout(), root.output), svc, strings.Join(args, " "))
		},
	}
}

func runDirect(ctx context.Context, p *printer, svc automation.Service, objective string) error {
	result := svc.RunDirect(ctx, objective)
	if err := p.result(result); err != nil {
		return err
	}
	if result.Failed() {
		return errSilentFailure
	}
	return nil
}
