// -- cmd/execute.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/automate-cli/internal/automation"
)

type executeOptions struct {
	objective string
	file      string
	actions   []string
}

func newExecuteCmd(root *rootOptions) *cobra.Command {
	opts := executeOptions{}

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Runs an explicit, ordered list of actions",
		Example: `  automate-cli execute --objective "search" --action type:content=cats --action key_press:keys=enter
  automate-cli execute --file plan.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildExecutionRequest(opts)
			if err != nil {
				return err
			}
			svc, _, err := root.newService(cmd.Context())
			if err != nil {
				return err
			}
			return runExecute(cmd.Context(), newPrinter(cmd.OutOrStdout(), root.output), svc, req)
		},
	}

	cmd.Flags().StringVar(&opts.objective, "objective", "", "objective sent alongside the actions (overrides the file's)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "JSON or YAML file with {objective, actions}")
	cmd.Flags().StringArrayVarP(&opts.actions, "action", "a", nil, "action as op:key=value,... (keys are joined with +); repeatable")
	return cmd
}

func runExecute(ctx context.Context, p *printer, svc automation.Service, req automation.ExecutionRequest) error {
	result := svc.Execute(ctx, req)
	if err := p.result(result); err != nil {
		return err
	}
	if result.Failed() {
		return errSilentFailure
	}
	return nil
}

// buildExecutionRequest merges the file, --action and --objective flags.
// File actions run first, followed by flag actions in the order given.
func buildExecutionRequest(opts executeOptions) (automation.ExecutionRequest, error) {
	var req automation.ExecutionRequest
	if opts.file == "" && len(opts.actions) == 0 && opts.objective == "" {
		return req, errors.New("nothing to execute: pass --file, --action or --objective")
	}

	if opts.file != "" {
		loaded, err := loadExecutionRequest(opts.file)
		if err != nil {
			return req, err
		}
		req = loaded
	}
	for _, spec := range opts.actions {
		action, err := parseActionFlag(spec)
		if err != nil {
			return req, err
		}
		req.Actions = append(req.Actions, action)
	}
	if opts.objective != "" {
		req.Objective = opts.objective
	}
	return req, nil
}

// loadExecutionRequest reads a request file. .yaml and .yml are YAML,
// anything else is JSON.
func loadExecutionRequest(path string) (automation.ExecutionRequest, error) {
	var req automation.ExecutionRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read action file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &req)
	default:
		err = json.Unmarshal(data, &req)
	}
	if err != nil {
		return req, fmt.Errorf("failed to parse action file %s: %w", path, err)
	}
	return req, nil
}

// parseActionFlag parses "op" or "op:key=value,key=value". Keys are
// thought, x, y, keys, content and summary; keys takes a +-joined chord.
func parseActionFlag(spec string) (automation.Action, error) {
	op, params, _ := strings.Cut(spec, ":")
	raw := automation.RawAction{Operation: automation.Operation(strings.TrimSpace(op))}

	if params != "" {
		for _, pair := range strings.Split(params, ",") {
			key, value, found := strings.Cut(pair, "=")
			if !found {
				return nil, fmt.Errorf("invalid action %q: expected key=value, got %q", spec, pair)
			}
			switch strings.TrimSpace(key) {
			case "thought":
				raw.Thought = value
			case "x":
				raw.X = value
			case "y":
				raw.Y = value
			case "keys":
				raw.Keys = strings.Split(value, "+")
			case "content":
				raw.Content = value
			case "summary":
				raw.Summary = value
			default:
				return nil, fmt.Errorf("invalid action %q: unknown key %q", spec, key)
			}
		}
	}

	action, err := automation.ParseAction(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid action %q: %w", spec, err)
	}
	return action, nil
}
