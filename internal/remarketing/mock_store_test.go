package remarketing

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jaupesca/remarketing-gateway/internal/model"
	"github.com/jaupesca/remarketing-gateway/internal/store"
)

// mockStore is an in-memory store.Store. Rows are kept as stored JSON so that
// reads go through the same decoding as the real store.
type mockStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*storedRow

	// failWith, when set, is returned by every method.
	failWith error
}

type storedRow struct {
	fields          model.ConfigFields
	thresholdsNull  bool
	messagesCNPJ    []byte
	messagesGeneric []byte
}

func newMockStore() *mockStore {
	return &mockStore{nextID: 1, rows: make(map[int64]*storedRow)}
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) sortedIDs() []int64 {
	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *mockStore) toRow(id int64, r *storedRow) *model.ConfigRow {
	out := &model.ConfigRow{
		ID:              id,
		AccountID:       r.fields.AccountID,
		AccessToken:     r.fields.AccessToken,
		BaseURL:         r.fields.BaseURL,
		Instance:        r.fields.Instance,
		MessagesCNPJ:    model.DecodeStoredBlocks(r.messagesCNPJ),
		MessagesGeneric: model.DecodeStoredBlocks(r.messagesGeneric),
	}
	if !r.thresholdsNull {
		c, g := r.fields.InactivityThresholdCNPJ, r.fields.InactivityThresholdGeneric
		out.InactivityThresholdCNPJ = &c
		out.InactivityThresholdGeneric = &g
	}
	return out
}

func newStoredRow(f model.ConfigFields) *storedRow {
	c, _ := model.EncodeBlocks(f.MessagesCNPJ)
	g, _ := model.EncodeBlocks(f.MessagesGeneric)
	return &storedRow{fields: f, messagesCNPJ: c, messagesGeneric: g}
}

// seedRaw inserts a row whose message columns hold arbitrary JSON and whose
// thresholds are NULL, as left behind by older writers.
func (m *mockStore) seedRaw(cnpj, generic string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.rows[id] = &storedRow{thresholdsNull: true, messagesCNPJ: []byte(cnpj), messagesGeneric: []byte(generic)}
	return id
}

func (m *mockStore) CountConfigs(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	return len(m.rows), nil
}

func (m *mockStore) GetConfigPage(_ context.Context, page int) (*model.ConfigRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	ids := m.sortedIDs()
	if page < 1 || page > len(ids) {
		return nil, nil
	}
	id := ids[page-1]
	return m.toRow(id, m.rows[id]), nil
}

func (m *mockStore) CreateConfig(_ context.Context, f model.ConfigFields) (*model.ConfigRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	id := m.nextID
	m.nextID++
	m.rows[id] = newStoredRow(f)
	return m.toRow(id, m.rows[id]), nil
}

func (m *mockStore) UpdateConfig(_ context.Context, id int64, f model.ConfigFields) (*model.ConfigRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if _, ok := m.rows[id]; !ok {
		return nil, sql.ErrNoRows
	}
	m.rows[id] = newStoredRow(f)
	return m.toRow(id, m.rows[id]), nil
}

func (m *mockStore) DeleteConfig(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

func (m *mockStore) BulkUpdateChannel(_ context.Context, ids []int64, ch model.Channel, msgs []model.MessageBlock) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	data, err := model.EncodeBlocks(msgs)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		r, ok := m.rows[id]
		if !ok {
			continue
		}
		if ch == model.ChannelGeneric {
			r.messagesGeneric = data
			r.fields.MessagesGeneric = msgs
		} else {
			r.messagesCNPJ = data
			r.fields.MessagesCNPJ = msgs
		}
		n++
	}
	return n, nil
}

func (m *mockStore) ListInstances(_ context.Context) ([]*model.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []*model.Instance
	for _, id := range m.sortedIDs() {
		r := m.toRow(id, m.rows[id])
		out = append(out, &model.Instance{
			ID:                         r.ID,
			AccountID:                  r.AccountID,
			Instance:                   r.Instance,
			BaseURL:                    r.BaseURL,
			InactivityThresholdCNPJ:    r.InactivityThresholdCNPJ,
			InactivityThresholdGeneric: r.InactivityThresholdGeneric,
		})
	}
	return out, nil
}

func (m *mockStore) ListAllConfigs(_ context.Context) ([]*model.ConfigRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ConfigRow
	for _, id := range m.sortedIDs() {
		out = append(out, m.toRow(id, m.rows[id]))
	}
	return out, nil
}

// RunInTransaction runs fn against the same store; the mock does not roll back.
func (m *mockStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Close() error { return nil }

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// rawInput builds a ConfigInput from a JSON object literal.
func rawInput(s string) ConfigInput {
	var in ConfigInput
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		panic(err)
	}
	return in
}
