package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jaupesca/remarketing-gateway/internal/model"
	"github.com/jaupesca/remarketing-gateway/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatThreshold(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func printConfigRow(w io.Writer, row *model.ConfigRow) {
	fmt.Fprintf(w, "ID:             %d\n", row.ID)
	fmt.Fprintf(w, "Account:        %d\n", row.AccountID)
	fmt.Fprintf(w, "Instance:       %s\n", row.Instance)
	fmt.Fprintf(w, "Base URL:       %s\n", row.BaseURL)
	if row.AccessToken != "" {
		fmt.Fprintf(w, "Access token:   %s\n", maskToken(row.AccessToken))
	}
	fmt.Fprintf(w, "Inactive CNPJ:  %s\n", formatThreshold(row.InactivityThresholdCNPJ))
	fmt.Fprintf(w, "Inactive gen.:  %s\n", formatThreshold(row.InactivityThresholdGeneric))
	printBlocks(w, "CNPJ flow", row.MessagesCNPJ)
	printBlocks(w, "Generic flow", row.MessagesGeneric)
}

func printBlocks(w io.Writer, title string, blocks []model.MessageBlock) {
	fmt.Fprintf(w, "\n%s (%d)\n", ui.RenderAccent(title), len(blocks))
	if len(blocks) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("  (empty)"))
		return
	}
	for i, b := range blocks {
		body := b.Message
		if b.URL != "" {
			if body != "" {
				body = b.URL + " " + ui.RenderMuted("\""+body+"\"")
			} else {
				body = b.URL
			}
		}
		fmt.Fprintf(w, "  %2d. %s %s %s %s\n", i+1, ui.RenderKind(b.Kind), ui.RenderMode(b.Mode), ui.RenderMuted(string(b.SendBy)), oneLine(body, 80))
	}
}

func printInstancesTable(w io.Writer, list []*model.Instance) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "no instances configured")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACCOUNT\tINSTANCE\tBASE URL\tCNPJ\tGENERIC")
	for _, in := range list {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			in.ID, in.AccountID, in.Instance, in.BaseURL,
			formatThreshold(in.InactivityThresholdCNPJ), formatThreshold(in.InactivityThresholdGeneric))
	}
	return tw.Flush()
}

func maskToken(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}

// oneLine collapses newlines and truncates s to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
