package events

import (
	"context"

	"github.com/jaupesca/remarketing-gateway/internal/model"
)

// Event topic constants
const (
	TopicConfigCreated     = "remarketing.config.created"
	TopicConfigUpdated     = "remarketing.config.updated"
	TopicConfigDeleted     = "remarketing.config.deleted"
	TopicMessagesBroadcast = "remarketing.messages.broadcast"

	// TopicAll matches every remarketing event.
	TopicAll = "remarketing.>"
)

// Event types

type ConfigCreated struct {
	Config *model.ConfigRow `json:"config"`
	Total  int              `json:"total"`
}

type ConfigUpdated struct {
	Config *model.ConfigRow `json:"config"`
}

type ConfigDeleted struct {
	ID int64 `json:"id"`
}

type MessagesBroadcast struct {
	Channel      model.Channel `json:"channel"`
	InstanceIDs  []int64       `json:"instanceIds"`
	UpdatedCount int           `json:"updatedCount"`
	BlockCount   int           `json:"blockCount"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
