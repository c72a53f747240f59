// Package client provides a transport-agnostic interface for the remarketing
// gateway and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"io"

	"github.com/jaupesca/remarketing-gateway/internal/model"
)

// RemarketingClient is the interface that all rmk CLI commands use to
// communicate with the gateway. It is implemented by HTTPClient.
type RemarketingClient interface {
	// Config repository
	GetConfigPage(ctx context.Context, page int) (*ConfigPage, error)
	CreateConfig(ctx context.Context, req *ConfigRequest) (*CreatedConfig, error)
	ReplaceConfig(ctx context.Context, id int64, req *ConfigRequest) (*model.ConfigRow, error)
	DeleteConfig(ctx context.Context, id int64) error

	// Instance directory
	ListInstances(ctx context.Context) ([]*model.Instance, error)

	// Flow service
	Broadcast(ctx context.Context, req *BroadcastRequest) (*BroadcastResult, error)

	// Object storage
	Upload(ctx context.Context, kind model.BlockKind, fileName string, r io.Reader) (*UploadResult, error)

	// Gateway
	Health(ctx context.Context) (string, error)
	Projects(ctx context.Context) ([]ProjectInfo, error)

	// Lifecycle
	Close() error
}

// ConfigRequest is the body of a create or replace. Every field is written;
// nil message lists are stored as empty.
type ConfigRequest struct {
	AccountID                  int64                `json:"accountId"`
	AccessToken                string               `json:"accessToken"`
	BaseURL                    string               `json:"baseUrl"`
	Instance                   string               `json:"instance"`
	InactivityThresholdCNPJ    int                  `json:"inactivityThresholdCnpj"`
	InactivityThresholdGeneric int                  `json:"inactivityThresholdGeneric"`
	MessagesCNPJ               []model.MessageBlock `json:"messagesCnpj"`
	MessagesGeneric            []model.MessageBlock `json:"messagesGeneric"`
}

// FromRow returns a request that rewrites row unchanged, for read-modify-write
// updates.
func FromRow(row *model.ConfigRow) *ConfigRequest {
	req := &ConfigRequest{
		AccountID:       row.AccountID,
		AccessToken:     row.AccessToken,
		BaseURL:         row.BaseURL,
		Instance:        row.Instance,
		MessagesCNPJ:    row.MessagesCNPJ,
		MessagesGeneric: row.MessagesGeneric,
	}
	if row.InactivityThresholdCNPJ != nil {
		req.InactivityThresholdCNPJ = *row.InactivityThresholdCNPJ
	}
	if row.InactivityThresholdGeneric != nil {
		req.InactivityThresholdGeneric = *row.InactivityThresholdGeneric
	}
	return req
}

// ConfigPage is one page of the configuration table.
type ConfigPage struct {
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
	Config     *model.ConfigRow `json:"config"`
}

// CreatedConfig is the response from CreateConfig. Total is also the page
// the new row landed on.
type CreatedConfig struct {
	Config *model.ConfigRow `json:"config"`
	Total  int              `json:"total"`
}

// BroadcastRequest holds parameters for a broadcast.
type BroadcastRequest struct {
	InstanceIDs []int64              `json:"instanceIds"`
	Messages    []model.MessageBlock `json:"messages"`
	Type        model.Channel        `json:"type"`
}

// BroadcastResult is the response from Broadcast.
type BroadcastResult struct {
	UpdatedCount int           `json:"updatedCount"`
	InstanceIDs  []int64       `json:"instanceIds"`
	Channel      model.Channel `json:"channel"`
}

// UploadResult is the response from Upload.
type UploadResult struct {
	OK           bool   `json:"ok"`
	URL          string `json:"url"`
	Bucket       string `json:"bucket"`
	Key          string `json:"key"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
}

// ProjectInfo is one entry of the gateway's project index.
type ProjectInfo struct {
	Name      string `json:"name"`
	MountPath string `json:"mountPath"`
}
