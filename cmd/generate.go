// -- cmd/generate.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/automate-cli/internal/automation"
	"github.com/xkilldash9x/automate-cli/internal/observability"
)

type generateOptions struct {
	run bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <objective...>",
		Short: "Asks the engine to plan an objective without executing it",
		Long: `Asks the engine to plan an objective and prints the proposed actions.
With --run the plan is then submitted for execution as-is.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := root.newService(cmd.Context())
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), newPrinter(cmd.OutOrStdout(), root.output), svc, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.run, "run", false, "execute the generated plan")
	return cmd
}

func runGenerate(ctx context.Context, p *printer, svc automation.Service, objective string, opts generateOptions) error {
	actions, err := svc.GenerateActions(ctx, objective)
	if err != nil {
		observability.GetLogger().Debug("Generation failure detail", zap.NamedError("cause", unwrapGeneration(err)))
		return err
	}
	if err := p.actions(actions); err != nil {
		return err
	}
	if !opts.run {
		return nil
	}

	if p.format == outputText {
		fmt.Fprintln(p.out, p.dim.Sprint("executing plan..."))
	}
	return runExecute(ctx, p, svc, automation.NewExecutionRequest(objective, actions...))
}

func unwrapGeneration(err error) error {
	var genErr *automation.GenerationError
	if errors.As(err, &genErr) && genErr.Cause != nil {
		return genErr.Cause
	}
	return err
}
