// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the NimbusMQ CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nimbus",
		Short: "NimbusMQ - a multi-tenant MQTT broker",
		Long: `NimbusMQ is a multi-tenant MQTT broker. This tool manages its
authorization rule engine: validating, displaying, and exercising
ACL rule files, and running the engine as a long-lived process.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewACLCmd())
	cmd.AddCommand(NewServeCmd())

	return cmd
}
