// Package remarketing implements the remarketing message-flow editor: paged
// configuration CRUD, the instance directory, and channel broadcasts.
package remarketing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaupesca/remarketing-gateway/internal/events"
	"github.com/jaupesca/remarketing-gateway/internal/model"
	"github.com/jaupesca/remarketing-gateway/internal/store"
)

// PageSize is the number of configuration rows per page. Each page is one row.
const PageSize = 1

// ErrNotFound is returned when an addressed configuration row does not exist.
var ErrNotFound = errors.New("config not found")

// inputError indicates invalid user input.
type inputError string

func (e inputError) Error() string { return string(e) }

// Service is the request-facing logic over the configuration store.
type Service struct {
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService returns a Service backed by the given store and publisher.
// A nil publisher disables change events.
func NewService(s store.Store, p events.Publisher, logger *slog.Logger) *Service {
	if p == nil {
		p = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, publisher: p, logger: logger}
}

// PageResult is one page of the configuration table.
type PageResult struct {
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
	Config     *model.ConfigRow `json:"config"`
}

// CreateResult carries the new row and the row count after the insert, which
// is also the page the new row is on.
type CreateResult struct {
	Config *model.ConfigRow `json:"config"`
	Total  int              `json:"total"`
}

// BroadcastInput is the body of a broadcast request.
type BroadcastInput struct {
	InstanceIDs json.RawMessage `json:"instanceIds"`
	Messages    json.RawMessage `json:"messages"`
	Type        string          `json:"type"`
}

// BroadcastResult reports the outcome of a broadcast.
type BroadcastResult struct {
	UpdatedCount int           `json:"updatedCount"`
	InstanceIDs  []int64       `json:"instanceIds"`
	Channel      model.Channel `json:"channel"`
}

// Get returns the requested page. Pages below 1 read as 1 and pages past
// the end are clamped to the last page. An empty table yields page 1 with
// no config.
func (s *Service) Get(ctx context.Context, page int) (*PageResult, error) {
	if page < 1 {
		page = 1
	}

	total, err := s.store.CountConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("count configs: %w", err)
	}
	if total == 0 {
		return &PageResult{Page: 1, PageSize: PageSize}, nil
	}

	totalPages := (total + PageSize - 1) / PageSize
	if page > totalPages {
		page = totalPages
	}

	row, err := s.store.GetConfigPage(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("get page %d: %w", page, err)
	}
	return &PageResult{
		Page:       page,
		PageSize:   PageSize,
		Total:      total,
		TotalPages: totalPages,
		Config:     row,
	}, nil
}

// Create inserts a new row. The insert and the count run in one transaction.
func (s *Service) Create(ctx context.Context, in ConfigInput) (*CreateResult, error) {
	fields, err := NormalizeConfigInput(in)
	if err != nil {
		return nil, err
	}

	var res CreateResult
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		row, err := tx.CreateConfig(ctx, fields)
		if err != nil {
			return fmt.Errorf("create config: %w", err)
		}
		total, err := tx.CountConfigs(ctx)
		if err != nil {
			return fmt.Errorf("count configs: %w", err)
		}
		res = CreateResult{Config: row, Total: total}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicConfigCreated, events.ConfigCreated{Config: res.Config.Redacted(), Total: res.Total})
	return &res, nil
}

// Replace overwrites every mutable field of row id. Last writer wins.
func (s *Service) Replace(ctx context.Context, id int64, in ConfigInput) (*model.ConfigRow, error) {
	if id < 1 {
		return nil, inputError("id must be a positive integer")
	}
	fields, err := NormalizeConfigInput(in)
	if err != nil {
		return nil, err
	}

	row, err := s.store.UpdateConfig(ctx, id, fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update config %d: %w", id, err)
	}

	s.publish(ctx, events.TopicConfigUpdated, events.ConfigUpdated{Config: row.Redacted()})
	return row, nil
}

// Remove deletes row id.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if id < 1 {
		return inputError("id must be a positive integer")
	}
	err := s.store.DeleteConfig(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete config %d: %w", id, err)
	}

	s.publish(ctx, events.TopicConfigDeleted, events.ConfigDeleted{ID: id})
	return nil
}

// ListInstances returns every configured instance in id order, read fresh
// from the store on each call.
func (s *Service) ListInstances(ctx context.Context) ([]*model.Instance, error) {
	list, err := s.store.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	if list == nil {
		list = []*model.Instance{}
	}
	return list, nil
}

// Broadcast writes one message list into the chosen channel of every
// target row. Only that channel's column changes.
func (s *Service) Broadcast(ctx context.Context, in BroadcastInput) (*BroadcastResult, error) {
	ids := NormalizeInstanceIDs(in.InstanceIDs)
	if len(ids) == 0 {
		return nil, inputError("instanceIds must contain at least one positive integer id")
	}

	ch, err := model.ParseChannel(in.Type)
	if err != nil {
		return nil, inputError(`type must be "cnpj" or "generic"`)
	}

	blocks, errs := DecodeBlocksStrict("messages", in.Messages)
	errs = append(errs, model.ValidateBlocks("messages", blocks)...)
	if len(errs) > 0 {
		return nil, &model.ValidationError{Errors: errs}
	}

	n, err := s.store.BulkUpdateChannel(ctx, ids, ch, blocks)
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}

	res := &BroadcastResult{UpdatedCount: n, InstanceIDs: ids, Channel: ch}
	s.publish(ctx, events.TopicMessagesBroadcast, events.MessagesBroadcast{
		Channel:      ch,
		InstanceIDs:  ids,
		UpdatedCount: n,
		BlockCount:   len(blocks),
	})
	return res, nil
}

// publish emits a change event. Failures are logged and never fail the request.
func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}

// isInputError reports whether err should be answered with 400.
func isInputError(err error) bool {
	var ie inputError
	var ve *model.ValidationError
	return errors.As(err, &ie) || errors.As(err, &ve)
}
