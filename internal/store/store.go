package store

import (
	"context"

	"github.com/jaupesca/remarketing-gateway/internal/model"
)

// Store defines the persistence interface for remarketing configuration rows.
// Implementations return sql.ErrNoRows when an addressed row does not exist.
type Store interface {
	// Paginated reads. One row is one page, ordered by id.
	CountConfigs(ctx context.Context) (int, error)
	GetConfigPage(ctx context.Context, page int) (*model.ConfigRow, error) // nil, nil when the page is empty

	// Row CRUD
	CreateConfig(ctx context.Context, fields model.ConfigFields) (*model.ConfigRow, error)
	UpdateConfig(ctx context.Context, id int64, fields model.ConfigFields) (*model.ConfigRow, error)
	DeleteConfig(ctx context.Context, id int64) error

	// BulkUpdateChannel overwrites one channel's message list on every row in
	// ids and returns the number of rows changed.
	BulkUpdateChannel(ctx context.Context, ids []int64, ch model.Channel, msgs []model.MessageBlock) (int, error)

	// Projections
	ListInstances(ctx context.Context) ([]*model.Instance, error)
	ListAllConfigs(ctx context.Context) ([]*model.ConfigRow, error)

	// Transactions
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
