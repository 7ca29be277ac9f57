// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/automate-cli/internal/automation"
	"github.com/xkilldash9x/automate-cli/internal/config"
	"github.com/xkilldash9x/automate-cli/internal/network"
	"github.com/xkilldash9x/automate-cli/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// errSilentFailure signals a non-zero exit whose reason was already printed.
var errSilentFailure = errors.New("command failed")

// osExit is swapped out in tests.
var osExit = os.Exit

// ServiceFactory builds the automation service a command talks to.
type ServiceFactory interface {
	Create(cfg config.Interface, logger *zap.Logger) (automation.Service, error)
}

type defaultServiceFactory struct{}

// Create wires an automation.Client on top of the configured transport.
func (defaultServiceFactory) Create(cfg config.Interface, logger *zap.Logger) (automation.Service, error) {
	automationCfg := cfg.Automation()
	clientCfg, err := network.ClientConfigFrom(cfg.Network(), automationCfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	clientCfg.Logger = logger.Named("httpclient")
	return automation.NewClient(automationCfg, network.NewClient(clientCfg), logger), nil
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	cfgFile  string
	endpoint string
	output   string
	timeout  time.Duration
	insecure bool
	factory  ServiceFactory
}

// NewRootCommand builds the command tree. A nil factory uses the real client.
func NewRootCommand(factory ServiceFactory) *cobra.Command {
	if factory == nil {
		factory = defaultServiceFactory{}
	}
	opts := &rootOptions{factory: factory}

	cmd := &cobra.Command{
		Use:           "automate-cli",
		Short:         "automate-cli drives a remote desktop automation engine.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, opts.cfgFile); err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger())
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger())
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			if opts.endpoint != "" {
				cfg.SetAutomationEndpoint(opts.endpoint)
			}
			if cmd.Flags().Changed("timeout") {
				if opts.timeout < 0 {
					return fmt.Errorf("invalid --timeout %s: must not be negative", opts.timeout)
				}
				cfg.SetAutomationRequestTimeout(opts.timeout)
			}
			if cmd.Flags().Changed("insecure") {
				cfg.SetNetworkIgnoreTLSErrors(opts.insecure)
			}
			if opts.output != outputText && opts.output != outputJSON {
				return fmt.Errorf("invalid --output %q: must be %q or %q", opts.output, outputText, outputJSON)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting automate-cli",
				zap.String("version", Version),
				zap.String("endpoint", cfg.Automation().Endpoint),
			)

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./automate.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.endpoint, "endpoint", "e", "", "automation engine address (overrides automation.endpoint)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text or json")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "per-request timeout, 0 for none (overrides automation.request_timeout)")
	cmd.PersistentFlags().BoolVar(&opts.insecure, "insecure", false, "skip TLS certificate verification (overrides network.ignore_tls_errors)")
	cmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	cmd.AddCommand(newHealthCmd(opts))
	cmd.AddCommand(newDirectCmd(opts))
	cmd.AddCommand(newExecuteCmd(opts))
	cmd.AddCommand(newGenerateCmd(opts))
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStubCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute(ctx context.Context) {
	root := NewRootCommand(nil)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errSilentFailure) {
			fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		}
		observability.GetLogger().Debug("Command execution failed", zap.Error(err))
		observability.Sync()
		osExit(1)
	}
}

// initializeConfig reads in the config file and environment overrides.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("automate")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(config.NewEnvKeyReplacer())
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// configFrom returns the configuration loaded by the root command.
func configFrom(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// newService builds the automation service for a command. An explicit
// --endpoint is applied through SetEndpoint so the client starts from an
// unknown connection state against that address.
func (o *rootOptions) newService(ctx context.Context) (automation.Service, config.Interface, error) {
	cfg, err := configFrom(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc, err := o.factory.Create(cfg, observability.GetLogger())
	if err != nil {
		return nil, nil, err
	}
	if o.endpoint != "" {
		svc.SetEndpoint(o.endpoint)
	}
	return svc, cfg, nil
}
