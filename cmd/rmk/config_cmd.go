package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jaupesca/remarketing-gateway/internal/client"
	"github.com/jaupesca/remarketing-gateway/internal/model"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Read and edit remarketing configurations",
	GroupID: "config",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every configuration row",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := fetchAllRows(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, rows)
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "no configurations")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PAGE\tID\tACCOUNT\tINSTANCE\tCNPJ MSGS\tGENERIC MSGS")
		for i, r := range rows {
			fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%d\t%d\n", i+1, r.ID, r.AccountID, r.Instance, len(r.MessagesCNPJ), len(r.MessagesGeneric))
		}
		return w.Flush()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [<page>]",
	Short: "Show one page (one configuration row); defaults to page 1",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid page %q", args[0])
			}
			page = n
		}

		res, err := rmkClient.GetConfigPage(cmd.Context(), page)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		if res.Config == nil {
			fmt.Fprintln(out, "no configurations")
			return nil
		}
		fmt.Fprintf(out, "Page %d of %d\n\n", res.Page, res.TotalPages)
		printConfigRow(out, res.Config)
		return nil
	},
}

var configCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a configuration row",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.ConfigRequest{}
		if err := loadConfigRequest(cmd, req); err != nil {
			return err
		}
		if err := applyConfigFlags(cmd, req); err != nil {
			return err
		}

		res, err := rmkClient.CreateConfig(cmd.Context(), req)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "created config %d (page %d)\n", res.Config.ID, res.Total)
		return nil
	},
}

var configUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a configuration row",
	Long: `Replace a configuration row. Without --file the current row is fetched
and only the fields given as flags change.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		var req *client.ConfigRequest
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			req = &client.ConfigRequest{}
			if err := loadConfigRequest(cmd, req); err != nil {
				return err
			}
		} else {
			row, err := findRow(cmd.Context(), id)
			if err != nil {
				return err
			}
			req = client.FromRow(row)
		}
		if err := applyConfigFlags(cmd, req); err != nil {
			return err
		}

		row, err := rmkClient.ReplaceConfig(cmd.Context(), id, req)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, row)
		}
		fmt.Fprintf(out, "updated config %d\n", row.ID)
		return nil
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a configuration row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := rmkClient.DeleteConfig(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted config %d\n", id)
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

// fetchAllRows walks every page in order.
func fetchAllRows(ctx context.Context) ([]*model.ConfigRow, error) {
	first, err := rmkClient.GetConfigPage(ctx, 1)
	if err != nil {
		return nil, err
	}
	rows := []*model.ConfigRow{}
	if first.Config == nil {
		return rows, nil
	}
	rows = append(rows, first.Config)
	for page := 2; page <= first.TotalPages; page++ {
		res, err := rmkClient.GetConfigPage(ctx, page)
		if err != nil {
			return nil, err
		}
		// A concurrent delete can shrink the table; a clamped page repeats a row.
		if res.Page != page || res.Config == nil {
			break
		}
		rows = append(rows, res.Config)
	}
	return rows, nil
}

func findRow(ctx context.Context, id int64) (*model.ConfigRow, error) {
	rows, err := fetchAllRows(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("config %d not found", id)
}

// loadConfigRequest decodes --file (or stdin for "-") into req.
func loadConfigRequest(cmd *cobra.Command, req *client.ConfigRequest) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return nil
	}
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(req); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyConfigFlags overlays the flags the user set onto req.
func applyConfigFlags(cmd *cobra.Command, req *client.ConfigRequest) error {
	f := cmd.Flags()
	if f.Changed("account") {
		req.AccountID, _ = f.GetInt64("account")
	}
	if f.Changed("token") {
		req.AccessToken, _ = f.GetString("token")
	}
	if f.Changed("base-url") {
		req.BaseURL, _ = f.GetString("base-url")
	}
	if f.Changed("instance") {
		req.Instance, _ = f.GetString("instance")
	}
	if f.Changed("threshold-cnpj") {
		req.InactivityThresholdCNPJ, _ = f.GetInt("threshold-cnpj")
	}
	if f.Changed("threshold-generic") {
		req.InactivityThresholdGeneric, _ = f.GetInt("threshold-generic")
	}
	if f.Changed("clear-cnpj") {
		req.MessagesCNPJ = []model.MessageBlock{}
	}
	if f.Changed("clear-generic") {
		req.MessagesGeneric = []model.MessageBlock{}
	}
	if req.AccountID < 0 || req.InactivityThresholdCNPJ < 0 || req.InactivityThresholdGeneric < 0 {
		return fmt.Errorf("account and thresholds must not be negative")
	}
	return nil
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "read the config as JSON from a file (- for stdin)")
	cmd.Flags().Int64("account", 0, "account id")
	cmd.Flags().String("token", "", "access token of the messaging bot")
	cmd.Flags().String("base-url", "", "base URL of the messaging bot")
	cmd.Flags().String("instance", "", "messaging API instance name")
	cmd.Flags().Int("threshold-cnpj", 0, "inactivity threshold of the CNPJ flow")
	cmd.Flags().Int("threshold-generic", 0, "inactivity threshold of the generic flow")
	cmd.Flags().Bool("clear-cnpj", false, "empty the CNPJ flow")
	cmd.Flags().Bool("clear-generic", false, "empty the generic flow")
}

func init() {
	addConfigFlags(configCreateCmd)
	addConfigFlags(configUpdateCmd)

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configCreateCmd)
	configCmd.AddCommand(configUpdateCmd)
	configCmd.AddCommand(configDeleteCmd)
}

var instancesCmd = &cobra.Command{
	Use:     "instances",
	Short:   "List the instance directory",
	GroupID: "config",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := rmkClient.ListInstances(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		return printInstancesTable(cmd.OutOrStdout(), list)
	},
}
