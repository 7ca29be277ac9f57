// -- cmd/stub.go --
package cmd

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/automate-cli/internal/enginestub"
	"github.com/xkilldash9x/automate-cli/internal/observability"
	"github.com/xkilldash9x/automate-cli/internal/security"
)

type stubOptions struct {
	listenAddr string
	tls        bool
	caOut      string
}

func newStubCmd() *cobra.Command {
	opts := stubOptions{}

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serves a local stub automation engine until interrupted",
		Long: `Serves /health, /direct-automate, /automate and /generate-actions with a
deterministic planner. Nothing is executed on the desktop; useful for
trying the other commands without a real engine.

With --tls the stub serves HTTPS (and HTTP/2) using a certificate from a
freshly generated authority. Clients either trust the PEM written by
--ca-out or set network.ignore_tls_errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("listen") {
				opts.listenAddr = cfg.Stub().ListenAddr
			}
			if !cmd.Flags().Changed("tls") {
				opts.tls = cfg.Stub().TLS
			}

			logger := observability.GetLogger()
			var stubOpts []enginestub.Option
			if opts.tls {
				tlsOpt, err := stubTLS(opts)
				if err != nil {
					return err
				}
				stubOpts = append(stubOpts, tlsOpt)
				logger.Info("Serving the stub engine over TLS", zap.String("ca_file", opts.caOut))
			}
			return enginestub.New(opts.listenAddr, logger, stubOpts...).Run(cmd.Context(), nil)
		},
	}

	cmd.Flags().StringVar(&opts.listenAddr, "listen", "", "listen address (default stub.listen_addr)")
	cmd.Flags().BoolVar(&opts.tls, "tls", false, "serve HTTPS with an ephemeral certificate (default stub.tls)")
	cmd.Flags().StringVar(&opts.caOut, "ca-out", "", "with --tls, write the CA certificate (PEM) to this file")
	return cmd
}

// stubTLS issues a serving certificate for the listen host and loopback names.
func stubTLS(opts stubOptions) (enginestub.Option, error) {
	ca, err := security.NewCA("automate-cli stub engine")
	if err != nil {
		return nil, err
	}

	hosts := []string{"localhost", "127.0.0.1", "::1"}
	if host, _, err := net.SplitHostPort(opts.listenAddr); err == nil && host != "" {
		hosts = append([]string{host}, hosts...)
	}
	cert, err := ca.IssueServerCert(hosts...)
	if err != nil {
		return nil, err
	}

	if opts.caOut != "" {
		if err := os.WriteFile(opts.caOut, ca.PEM(), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write CA certificate: %w", err)
		}
	}
	return enginestub.WithTLS(cert), nil
}
