package main

import (
	"fmt"

	"github.com/dshills/packhost/internal/app"
	"github.com/spf13/cobra"
)

// globalFlags override the PACKHOST_* environment.
type globalFlags struct {
	paths       []string
	bundledPath string
	configPath  string
	logLevel    string
	strict      bool
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "packhost",
		Short: "Load and activate editor packages",
		Long: `packhost discovers editor packages, loads their keymaps, menus,
stylesheets, grammars and settings, and activates their Lua main modules,
deferring activation until a declared command, hook or URI fires.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringSliceVarP(&flags.paths, "path", "p", nil, "Package search path (repeatable)")
	pf.StringVar(&flags.bundledPath, "bundled", "", "Directory of bundled packages")
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&flags.strict, "strict", false, "Fail on package errors")

	root.AddCommand(
		newListCmd(&flags),
		newActivateCmd(&flags),
		newEnableCmd(&flags),
		newDisableCmd(&flags),
	)
	return root
}

// newApp builds the application from the environment and cmd's flags.
func newApp(cmd *cobra.Command, flags *globalFlags) (*app.App, error) {
	opts, err := app.LoadOptions()
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("path") {
		opts.Paths = flags.paths
	}
	if f.Changed("bundled") {
		opts.BundledPath = flags.bundledPath
	}
	if f.Changed("config") {
		opts.ConfigPath = flags.configPath
	}
	if f.Changed("log-level") {
		opts.LogLevel = flags.logLevel
	}
	if f.Changed("strict") {
		opts.Strict = flags.strict
	}
	if version != "dev" {
		opts.Version = version
	}
	opts.LogOutput = cmd.ErrOrStderr()

	return app.New(opts)
}
