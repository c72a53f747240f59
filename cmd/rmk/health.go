package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jaupesca/remarketing-gateway/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the gateway and list its projects",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := rmkClient.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		projects, err := rmkClient.Projects(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := printJSON(out, map[string]any{"status": status, "projects": projects}); err != nil {
				return err
			}
		} else {
			label := ui.RenderOK(status)
			if status != "ok" {
				label = ui.RenderFail(status)
			}
			fmt.Fprintf(out, "Health: %s\n", label)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, p := range projects {
				fmt.Fprintf(w, "  %s\t%s\n", p.Name, ui.RenderMuted(p.MountPath))
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
