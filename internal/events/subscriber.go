package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages for the given topic patterns on the
	// returned channel. The cancel function unsubscribes; the channel is
	// closed once delivery has stopped.
	Subscribe(topics ...string) (<-chan Message, func(), error)
	Close() error
}

// Message is one received event with the subject it was published on.
type Message struct {
	Topic    string
	Data     []byte
	Received time.Time
}

// Event decodes the payload into its topic-specific type.
func (m Message) Event() (any, error) {
	return Decode(m.Topic, m.Data)
}

// Decode splits a raw payload into its topic-specific event type.
// Unknown topics decode into a generic map.
func Decode(topic string, data []byte) (any, error) {
	var v any
	switch topic {
	case TopicConfigCreated:
		v = &ConfigCreated{}
	case TopicConfigUpdated:
		v = &ConfigUpdated{}
	case TopicConfigDeleted:
		v = &ConfigDeleted{}
	case TopicMessagesBroadcast:
		v = &MessagesBroadcast{}
	default:
		v = &map[string]any{}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// kindTopics maps the event kinds a watcher can ask for to subjects.
var kindTopics = map[string]string{
	"config":    "remarketing.config.*",
	"created":   TopicConfigCreated,
	"updated":   TopicConfigUpdated,
	"deleted":   TopicConfigDeleted,
	"broadcast": TopicMessagesBroadcast,
}

// TopicsFor resolves event kinds ("config", "created", "updated", "deleted",
// "broadcast") to subscription topics. No kinds means every event.
func TopicsFor(kinds []string) ([]string, error) {
	if len(kinds) == 0 {
		return []string{TopicAll}, nil
	}
	seen := make(map[string]bool)
	var topics []string
	for _, k := range kinds {
		topic, ok := kindTopics[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			return nil, fmt.Errorf("unknown event kind %q (want config, created, updated, deleted or broadcast)", k)
		}
		if !seen[topic] {
			seen[topic] = true
			topics = append(topics, topic)
		}
	}
	return topics, nil
}
