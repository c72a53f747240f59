package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/jaupesca/remarketing-gateway/internal/events"
	"github.com/jaupesca/remarketing-gateway/internal/model"
	"github.com/jaupesca/remarketing-gateway/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream configuration changes and broadcasts as they happen",
	GroupID: "flows",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("RMK_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemote().NATSURL
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL: pass --nats, set RMK_NATS_URL, or add one to the active remote")
		}

		kinds, _ := cmd.Flags().GetStringSlice("only")
		if !cmd.Flags().Changed("only") {
			kinds = activeRemote().Watch
		}
		topics, err := events.TopicsFor(kinds)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topics...)
		if err != nil {
			return fmt.Errorf("subscribing to events: %w", err)
		}
		defer cancel()

		return streamEvents(ctx, ch, cmd.OutOrStdout())
	},
}

// streamEvents prints each message until ctx ends or ch closes.
func streamEvents(ctx context.Context, ch <-chan events.Message, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if jsonOutput {
				fmt.Fprintf(w, "{\"topic\":%q,\"event\":%s}\n", msg.Topic, msg.Data)
				continue
			}
			at := msg.Received
			if at.IsZero() {
				at = time.Now()
			}
			fmt.Fprintln(w, formatEvent(at, msg))
		}
	}
}

func formatEvent(at time.Time, msg events.Message) string {
	prefix := ui.RenderMuted(at.Format("15:04:05"))
	v, err := msg.Event()
	if err != nil {
		return fmt.Sprintf("%s %s %s", prefix, ui.RenderFail(msg.Topic), ui.RenderMuted("(undecodable: "+err.Error()+")"))
	}

	var desc string
	switch e := v.(type) {
	case *events.ConfigCreated:
		desc = fmt.Sprintf("config %d created (instance %q, %d rows total)", rowID(e.Config), rowInstance(e.Config), e.Total)
	case *events.ConfigUpdated:
		desc = fmt.Sprintf("config %d replaced (instance %q)", rowID(e.Config), rowInstance(e.Config))
	case *events.ConfigDeleted:
		desc = fmt.Sprintf("config %d deleted", e.ID)
	case *events.MessagesBroadcast:
		ids := make([]string, len(e.InstanceIDs))
		for i, id := range e.InstanceIDs {
			ids[i] = fmt.Sprint(id)
		}
		desc = fmt.Sprintf("%s flow set to %d blocks on %d/%d instances [%s]",
			e.Channel, e.BlockCount, e.UpdatedCount, len(e.InstanceIDs), strings.Join(ids, ","))
	default:
		desc = string(msg.Data)
	}
	return fmt.Sprintf("%s %s %s", prefix, ui.RenderAccent(msg.Topic), desc)
}

func init() {
	watchCmd.Flags().String("nats", "", "NATS URL (default $RMK_NATS_URL or the active remote's)")
	watchCmd.Flags().StringSlice("only", nil, "event kinds to show: config, created, updated, deleted, broadcast")
}

func rowID(r *model.ConfigRow) int64 {
	if r == nil {
		return 0
	}
	return r.ID
}

func rowInstance(r *model.ConfigRow) string {
	if r == nil {
		return ""
	}
	return r.Instance
}
