package sync

import (
	"context"
	"errors"

	"github.com/jaupesca/remarketing-gateway/internal/model"
	"github.com/jaupesca/remarketing-gateway/internal/store"
)

// mockStore serves ListAllConfigs from memory. The embedded interface is nil,
// so any other Store method panics if the exporter ever calls it.
type mockStore struct {
	store.Store
	configs []*model.ConfigRow
	err     error
}

func newMockStore(rows ...*model.ConfigRow) *mockStore {
	return &mockStore{configs: rows}
}

func (m *mockStore) ListAllConfigs(_ context.Context) ([]*model.ConfigRow, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.configs, nil
}

var errStoreDown = errors.New("store down")
