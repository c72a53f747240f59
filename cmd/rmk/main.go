package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jaupesca/remarketing-gateway/internal/client"
	"github.com/jaupesca/remarketing-gateway/internal/ui"
)

var (
	httpURL    string
	jsonOutput bool
	noColor    bool

	rmkClient client.RemarketingClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("RMK_URL"); s != "" {
		return s
	}
	if u := activeRemote().URL; u != "" {
		return u
	}
	return "http://localhost:15432"
}

var rootCmd = &cobra.Command{
	Use:           "rmk <command>",
	Short:         "CLI for the remarketing gateway",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetColor(!noColor && ui.ShouldUseColor(os.Stdout))
		rmkClient = client.NewHTTPClient(httpURL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rmkClient != nil {
			rmkClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "url", defaultHTTPURL(), "gateway base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "config", Title: "Configuration:"},
		&cobra.Group{ID: "flows", Title: "Message flows:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Configuration
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(instancesCmd)

	// Message flows
	rootCmd.AddCommand(broadcastCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
