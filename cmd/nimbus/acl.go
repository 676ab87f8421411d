// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package main

import (
	"net/netip"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nimbusmq/nimbus/internal/authz"
	"github.com/nimbusmq/nimbus/internal/authz/acl"
	"github.com/nimbusmq/nimbus/internal/authz/acl/source"
	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// NewACLCmd creates the acl command group.
func NewACLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Inspect and validate authorization rules",
	}

	cmd.PersistentFlags().Bool("rich-actions", true, "enable per-rule qos/retain constraints")

	cmd.AddCommand(NewACLValidateCmd())
	cmd.AddCommand(NewACLShowCmd())
	cmd.AddCommand(NewACLCheckCmd())
	return cmd
}

// NewACLValidateCmd creates the acl validate subcommand.
func NewACLValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rules-file>",
		Short: "Compile a rules file and report the first bad rule, if any",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rich, _ := cmd.Flags().GetBool("rich-actions")
			rules, err := compileFile(cmd, args[0], rich)
			if err != nil {
				return err
			}
			cmd.Printf("%s: %d rules ok\n", args[0], rules.Len())
			return nil
		},
	}
}

// NewACLShowCmd creates the acl show subcommand.
func NewACLShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rules-file>",
		Short: "Render compiled rules back to their external YAML shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rich, _ := cmd.Flags().GetBool("rich-actions")
			rules, err := compileFile(cmd, args[0], rich)
			if err != nil {
				return err
			}

			raws := make([]types.RawRule, 0, rules.Len())
			for _, canonical := range rules.Rules() {
				raw, formatErr := acl.FormatRule(canonical, rich)
				if formatErr != nil {
					return formatErr
				}
				raws = append(raws, raw)
			}

			out, err := yaml.Marshal(map[string]any{"rules": raws})
			if err != nil {
				return oops.Wrapf(err, "rendering rules")
			}
			cmd.Print(string(out))
			return nil
		},
	}
}

// NewACLCheckCmd creates the acl check subcommand.
func NewACLCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <rules-file>",
		Short: "Evaluate one request against a rules file and print the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rich, _ := cmd.Flags().GetBool("rich-actions")
			flags := cmd.Flags()

			actionStr, _ := flags.GetString("action")
			action, ok := types.ParseActionKind(actionStr)
			if !ok || action == types.ActionAll {
				return oops.
					With("value", actionStr).
					Errorf("action must be %q or %q", "publish", "subscribe")
			}

			var peer netip.Addr
			if addrStr, _ := flags.GetString("ipaddr"); addrStr != "" {
				var err error
				peer, err = netip.ParseAddr(addrStr)
				if err != nil {
					return oops.Wrapf(err, "invalid peer address %q", addrStr)
				}
			}

			defaultStr, _ := flags.GetString("default")
			fallback, ok := types.ParsePermission(defaultStr)
			if !ok {
				return oops.
					With("value", defaultStr).
					Errorf("default must be %q or %q", "allow", "deny")
			}

			cache := acl.NewCache(source.NewFile(args[0]), rich)
			if err := cache.Reload(cmd.Context()); err != nil {
				return err
			}

			clientID, _ := flags.GetString("clientid")
			username, _ := flags.GetString("username")
			topic, _ := flags.GetString("topic")
			qos, _ := flags.GetUint8("qos")
			retain, _ := flags.GetBool("retain")

			var req types.AccessRequest
			if action == types.ActionPublish {
				req = authz.PublishRequest(clientID, username, peer, topic, qos, retain)
			} else {
				req = authz.SubscribeRequest(clientID, username, peer, topic, qos)
			}

			decision := authz.New(cache, fallback).Authorize(cmd.Context(), req)
			cmd.Println(decision.String())
			return nil
		},
	}

	cmd.Flags().String("clientid", "", "client identifier")
	cmd.Flags().String("username", "", "authenticated username")
	cmd.Flags().String("ipaddr", "", "peer IP address")
	cmd.Flags().String("action", "publish", "request action: publish or subscribe")
	cmd.Flags().String("topic", "", "topic (publish) or topic filter (subscribe)")
	cmd.Flags().Uint8("qos", 0, "requested QoS level")
	cmd.Flags().Bool("retain", false, "publish retain flag")
	cmd.Flags().String("default", "deny", "decision when no rule matches")
	return cmd
}

// compileFile loads and compiles a rules file.
func compileFile(cmd *cobra.Command, path string, richActions bool) (*acl.RuleSet, error) {
	raws, err := source.NewFile(path).Load(cmd.Context())
	if err != nil {
		return nil, err
	}
	return acl.CompileAll(raws, richActions)
}
