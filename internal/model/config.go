package model

import (
	"fmt"
	"strings"
)

// Channel selects one of the two independent message flows of a row.
type Channel string

const (
	ChannelCNPJ    Channel = "cnpj"
	ChannelGeneric Channel = "generic"
)

// IsValid reports whether c is a known channel.
func (c Channel) IsValid() bool {
	return c == ChannelCNPJ || c == ChannelGeneric
}

// ParseChannel maps a client-supplied flow type to a Channel.
// An empty value selects the CNPJ flow, matching older clients that never sent a type.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cnpj":
		return ChannelCNPJ, nil
	case "generic", "generico", "genérico":
		return ChannelGeneric, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// ConfigRow is one remarketing configuration: a messaging-bot instance and
// the two message flows it runs.
type ConfigRow struct {
	ID                         int64          `json:"id"`
	AccountID                  int64          `json:"accountId"`
	AccessToken                string         `json:"accessToken"`
	BaseURL                    string         `json:"baseUrl"`
	Instance                   string         `json:"instance"`
	InactivityThresholdCNPJ    *int           `json:"inactivityThresholdCnpj"`
	InactivityThresholdGeneric *int           `json:"inactivityThresholdGeneric"`
	MessagesCNPJ               []MessageBlock `json:"messagesCnpj"`
	MessagesGeneric            []MessageBlock `json:"messagesGeneric"`
}

// Messages returns the message list of the given channel.
func (r *ConfigRow) Messages(ch Channel) []MessageBlock {
	if ch == ChannelGeneric {
		return r.MessagesGeneric
	}
	return r.MessagesCNPJ
}

// Redacted returns a copy of r without its access token, for payloads that
// leave the request/response path such as change events.
func (r *ConfigRow) Redacted() *ConfigRow {
	if r == nil {
		return nil
	}
	c := *r
	c.AccessToken = ""
	return &c
}

// ConfigFields holds every mutable column of a ConfigRow. Write paths always
// persist concrete thresholds, so they are plain ints here.
type ConfigFields struct {
	AccountID                  int64
	AccessToken                string
	BaseURL                    string
	Instance                   string
	InactivityThresholdCNPJ    int
	InactivityThresholdGeneric int
	MessagesCNPJ               []MessageBlock
	MessagesGeneric            []MessageBlock
}

// Instance is the read-only view of a ConfigRow used to pick broadcast targets.
type Instance struct {
	ID                         int64  `json:"id"`
	AccountID                  int64  `json:"accountId"`
	Instance                   string `json:"instance"`
	BaseURL                    string `json:"baseUrl"`
	InactivityThresholdCNPJ    *int   `json:"inactivityThresholdCnpj"`
	InactivityThresholdGeneric *int   `json:"inactivityThresholdGeneric"`
}
