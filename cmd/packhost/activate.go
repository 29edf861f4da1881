package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type activateFlags struct {
	hooks    []string
	commands []string
	scopes   []string
	opens    []string
	uris     []string
	timeout  time.Duration
}

func newActivateCmd(flags *globalFlags) *cobra.Command {
	var af activateFlags

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Load and activate packages, then fire triggers",
		Long: `Load every enabled package and activate those that are not deferred.
Triggers given as flags are then fired in order: hooks, commands, workspace
opens and URIs. The resulting package states and notifications are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, af.timeout)
			defer cancel()

			if err := a.Start(ctx); err != nil {
				return err
			}

			m := a.Manager()
			for _, hook := range af.hooks {
				if err := m.TriggerActivationHook(ctx, hook); err != nil {
					return err
				}
			}
			for _, command := range af.commands {
				if err := m.DispatchCommand(ctx, command, af.scopes...); err != nil {
					return err
				}
			}
			for _, uri := range af.opens {
				if err := m.OpenURI(ctx, uri); err != nil {
					return err
				}
			}
			for _, uri := range af.uris {
				if err := m.HandleURI(ctx, uri); err != nil {
					return fmt.Errorf("handling %s: %w", uri, err)
				}
			}

			out := cmd.OutOrStdout()
			for _, p := range m.List() {
				fmt.Fprintf(out, "%-30s %s\n", p.Name(), p.Phase())
			}
			for _, n := range a.Registries().Notifications.All() {
				fmt.Fprintf(out, "%s: %s: %s\n", n.Severity, n.Message, n.Detail.Detail)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&af.hooks, "hook", nil, "Activation hook to trigger (repeatable)")
	f.StringSliceVar(&af.commands, "command", nil, "Command to dispatch (repeatable)")
	f.StringSliceVar(&af.scopes, "scope", []string{"atom-workspace"}, "Selectors of the dispatch target, innermost first")
	f.StringSliceVar(&af.opens, "open", nil, "URI to open in the workspace (repeatable)")
	f.StringSliceVar(&af.uris, "uri", nil, "URI to route to its package handler (repeatable)")
	f.DurationVar(&af.timeout, "timeout", 30*time.Second, "Time allowed for activation")
	return cmd
}
