package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jaupesca/remarketing-gateway/internal/model"
	"github.com/jaupesca/remarketing-gateway/internal/ui"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage gateway profiles and their broadcast/watch defaults",
	GroupID: "system",
	// Profiles are local files; no gateway client is needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetColor(!noColor && ui.ShouldUseColor(os.Stdout))
		return nil
	},
}

// updateProfiles loads the profiles, applies fn, and saves the result.
func updateProfiles(fn func(p *remoteProfiles) error) error {
	p, err := loadProfiles()
	if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		return err
	}
	return p.save()
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or replace a gateway profile",
	Example: `  rmk remote add prod https://crm.example.com --nats nats://crm.example.com:4222 --channel generic
  rmk remote add local http://localhost:15432 --watch broadcast,deleted`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		r := Remote{URL: strings.TrimRight(args[1], "/")}
		r.NATSURL, _ = cmd.Flags().GetString("nats")
		channel, _ := cmd.Flags().GetString("channel")
		r.Channel = model.Channel(channel)
		r.Watch, _ = cmd.Flags().GetStringSlice("watch")
		if err := r.validate(); err != nil {
			return fmt.Errorf("remote %q: %w", name, err)
		}

		err := updateProfiles(func(p *remoteProfiles) error {
			p.Remotes[name] = r
			if len(p.Remotes) == 1 {
				p.Active = name
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved remote %s -> %s\n", name, r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a gateway profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := updateProfiles(func(p *remoteProfiles) error {
			if _, err := p.get(name); err != nil {
				return err
			}
			delete(p.Remotes, name)
			if p.Active == name {
				p.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed remote %s\n", name)
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a profile the default for every command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := updateProfiles(func(p *remoteProfiles) error {
			if _, err := p.get(name); err != nil {
				return err
			}
			p.Active = name
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "now using remote %s\n", name)
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gateway profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfiles()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, p)
		}
		if len(p.Remotes) == 0 {
			fmt.Fprintln(out, "no remotes; add one with 'rmk remote add <name> <url>'")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tCHANNEL\tWATCH\tNATS")
		for _, name := range p.names() {
			r := p.Remotes[name]
			marker := "  "
			if name == p.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n", marker, name, r.URL,
				effectiveChannel(r), orDash(strings.Join(r.Watch, ",")), orDash(r.NATSURL))
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show a profile (defaults to the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfiles()
		if err != nil {
			return err
		}
		name := p.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active remote; pass a name or run 'rmk remote use <name>'")
		}
		r, err := p.get(name)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), r)
		}
		return printRemote(cmd.OutOrStdout(), name, name == p.Active, r)
	},
}

func printRemote(out io.Writer, name string, active bool, r Remote) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if active {
		name += " " + ui.RenderMuted("(active)")
	}
	watch := "all events"
	if len(r.Watch) > 0 {
		watch = strings.Join(r.Watch, ", ")
	}
	fmt.Fprintf(w, "Remote:\t%s\n", name)
	fmt.Fprintf(w, "Gateway:\t%s\n", r.URL)
	fmt.Fprintf(w, "Events:\t%s\n", orDash(r.NATSURL))
	fmt.Fprintf(w, "Broadcast flow:\t%s\n", effectiveChannel(r))
	fmt.Fprintf(w, "Watch:\t%s\n", watch)
	return w.Flush()
}

// effectiveChannel is the flow broadcast targets for r when --type is absent.
func effectiveChannel(r Remote) model.Channel {
	if r.Channel == "" {
		return model.ChannelCNPJ
	}
	return r.Channel
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	remoteAddCmd.Flags().String("nats", "", "NATS URL used by 'rmk watch'")
	remoteAddCmd.Flags().String("channel", "", "default flow for 'rmk broadcast' (cnpj or generic)")
	remoteAddCmd.Flags().StringSlice("watch", nil, "default event kinds for 'rmk watch'")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteUseCmd, remoteListCmd, remoteShowCmd)
}
