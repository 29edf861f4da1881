package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type listEntry struct {
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Path     string `json:"path"`
	Bundled  bool   `json:"bundled"`
	Disabled bool   `json:"disabled"`
	Deferred bool   `json:"deferred"`
	Error    string `json:"error,omitempty"`
}

func newListCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			infos, err := a.Manager().Discover()
			if err != nil {
				return fmt.Errorf("discovering packages: %w", err)
			}

			entries := make([]listEntry, 0, len(infos))
			for _, info := range infos {
				e := listEntry{
					Name:     info.Name,
					Path:     info.Path,
					Bundled:  info.Bundled,
					Disabled: a.Manager().IsDisabled(info.Name),
				}
				if info.Metadata != nil {
					m := info.Metadata
					e.Version = m.Version
					e.Deferred = m.HasActivationCommands() || m.HasActivationHooks() ||
						m.HasWorkspaceOpeners() || m.HasDeferredURIHandler()
				}
				if info.Error != nil {
					e.Error = info.Error.Error()
				}
				entries = append(entries, e)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No packages found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tSTATUS\tPATH")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Version, status(e), e.Path)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func status(e listEntry) string {
	switch {
	case e.Error != "":
		return "invalid: " + e.Error
	case e.Disabled:
		return "disabled"
	case e.Deferred:
		return "deferred"
	case e.Bundled:
		return "bundled"
	default:
		return "enabled"
	}
}
