// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/nimbusmq/nimbus/internal/authz/acl"
	"github.com/nimbusmq/nimbus/internal/authz/acl/source"
	"github.com/nimbusmq/nimbus/internal/config"
	"github.com/nimbusmq/nimbus/internal/logging"
	"github.com/nimbusmq/nimbus/internal/observability"
	"github.com/nimbusmq/nimbus/pkg/errutil"
)

// shutdownTimeout bounds graceful shutdown of the observability server.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand: it keeps the rule-set
// cache hot (reloading on file changes) and exposes metrics and health
// probes. The broker processes consult the same engine through their
// hook dispatcher.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization engine with hot reload and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logging.SetDefault("nimbus", version, cfg.Logging.Format)

			if cfg.ACL.Path == "" {
				return oops.Errorf("acl.path must be set")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cache := acl.NewCache(source.NewFile(cfg.ACL.Path), cfg.ACL.RichActions)
			if err := cache.Reload(ctx); err != nil {
				errutil.LogError(slog.Default(), "initial acl load failed", err)
				return err
			}
			if cfg.ACL.Watch {
				if err := cache.StartWatch(ctx); err != nil {
					return err
				}
			}

			server := observability.NewServer(cfg.Observability.ListenAddr, cache.Ready)
			errCh, err := server.Start()
			if err != nil {
				return err
			}

			select {
			case <-ctx.Done():
			case serveErr := <-errCh:
				if serveErr != nil {
					return oops.Wrapf(serveErr, "observability server failed")
				}
			}

			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := server.Stop(stopCtx); err != nil {
				return err
			}
			cache.Wait()
			return nil
		},
	}

	defaults := config.Default()
	cmd.Flags().String("acl.path", defaults.ACL.Path, "ACL rules file (.yaml document or .acl text)")
	cmd.Flags().Bool("acl.watch", defaults.ACL.Watch, "reload the rule set when the rules file changes")
	cmd.Flags().String("observability.listen_addr", defaults.Observability.ListenAddr, "metrics/health listen address")
	return cmd
}
