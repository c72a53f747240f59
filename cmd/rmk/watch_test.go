package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jaupesca/remarketing-gateway/internal/events"
	"github.com/jaupesca/remarketing-gateway/internal/model"
	"github.com/jaupesca/remarketing-gateway/internal/ui"
)

func mustMessage(t *testing.T, topic string, event any) events.Message {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	return events.Message{Topic: topic, Data: data}
}

func TestFormatEvent(t *testing.T) {
	ui.ForceNoColor()
	at := time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)

	tests := []struct {
		name string
		msg  events.Message
		want string
	}{
		{
			name: "created",
			msg:  mustMessage(t, events.TopicConfigCreated, events.ConfigCreated{Config: &model.ConfigRow{ID: 3, Instance: "loja"}, Total: 3}),
			want: `14:05:09 remarketing.config.created config 3 created (instance "loja", 3 rows total)`,
		},
		{
			name: "updated",
			msg:  mustMessage(t, events.TopicConfigUpdated, events.ConfigUpdated{Config: &model.ConfigRow{ID: 3, Instance: "x"}}),
			want: `14:05:09 remarketing.config.updated config 3 replaced (instance "x")`,
		},
		{
			name: "deleted",
			msg:  mustMessage(t, events.TopicConfigDeleted, events.ConfigDeleted{ID: 9}),
			want: `14:05:09 remarketing.config.deleted config 9 deleted`,
		},
		{
			name: "broadcast",
			msg: mustMessage(t, events.TopicMessagesBroadcast, events.MessagesBroadcast{
				Channel: model.ChannelGeneric, InstanceIDs: []int64{7, 8}, UpdatedCount: 1, BlockCount: 2,
			}),
			want: `14:05:09 remarketing.messages.broadcast generic flow set to 2 blocks on 1/2 instances [7,8]`,
		},
		{
			name: "unknown topic",
			msg:  events.Message{Topic: "remarketing.other", Data: []byte(`{"a":1}`)},
			want: `14:05:09 remarketing.other {"a":1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatEvent(at, tt.msg); got != tt.want {
				t.Errorf("formatEvent =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}

	bad := formatEvent(at, events.Message{Topic: events.TopicConfigDeleted, Data: []byte(`{`)})
	if !strings.Contains(bad, "undecodable") {
		t.Errorf("malformed payload = %q", bad)
	}
}

func TestStreamEvents(t *testing.T) {
	ui.ForceNoColor()
	jsonOutput = false
	ch := make(chan events.Message, 2)
	ch <- mustMessage(t, events.TopicConfigDeleted, events.ConfigDeleted{ID: 1})
	ch <- mustMessage(t, events.TopicConfigDeleted, events.ConfigDeleted{ID: 2})
	close(ch)

	var out bytes.Buffer
	if err := streamEvents(context.Background(), ch, &out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[1], "config 2 deleted") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestStreamEvents_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan events.Message)
	done := make(chan error, 1)
	go func() { done <- streamEvents(ctx, ch, &bytes.Buffer{}) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("streamEvents = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("streamEvents did not return after cancel")
	}
}
