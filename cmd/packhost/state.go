package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnableCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "enable NAME...",
		Short: "Remove packages from the disabled list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setDisabled(cmd, flags, args, false)
		},
	}
}

func newDisableCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "disable NAME...",
		Short: "Add packages to the disabled list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setDisabled(cmd, flags, args, true)
		},
	}
}

func setDisabled(cmd *cobra.Command, flags *globalFlags, names []string, disabled bool) error {
	a, err := newApp(cmd, flags)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	m := a.Manager()
	for _, name := range names {
		if disabled {
			err = m.Disable(name)
		} else {
			err = m.Enable(name)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := a.SaveConfig(); err != nil {
		return err
	}

	verb := "enabled"
	if disabled {
		verb = "disabled"
	}
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, name)
	}
	return nil
}
