package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/jaupesca/remarketing-gateway/internal/model"
)

// configColumns is the canonical column list for SELECT queries on config_remarketing_crm.
const configColumns = `id, id_account, access_token, url_base, instance,
	tempo_inativo_cnpj, tempo_inativo_gen, messages_cnpj, messages_generico`

const instanceColumns = `id, id_account, instance, url_base, tempo_inativo_cnpj, tempo_inativo_gen`

// channelColumns maps a channel to its message-list column. Broadcast updates
// interpolate the column name, so only values from this map may be used.
var channelColumns = map[model.Channel]string{
	model.ChannelCNPJ:    "messages_cnpj",
	model.ChannelGeneric: "messages_generico",
}

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCountConfigs(ctx context.Context, db executor) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM config_remarketing_crm`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count configs: %w", err)
	}
	return n, nil
}

func queryGetConfigPage(ctx context.Context, db executor, page int) (*model.ConfigRow, error) {
	if page < 1 {
		page = 1
	}
	row := db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM config_remarketing_crm ORDER BY id ASC LIMIT 1 OFFSET $1`,
		page-1)
	r, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get config page %d: %w", page, err)
	}
	return r, nil
}

func queryCreateConfig(ctx context.Context, db executor, f model.ConfigFields) (*model.ConfigRow, error) {
	cnpj, generic, err := encodeChannels(f)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO config_remarketing_crm (
			id_account, access_token, url_base, instance,
			tempo_inativo_cnpj, tempo_inativo_gen, messages_cnpj, messages_generico
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb)
		RETURNING `+configColumns,
		f.AccountID,
		f.AccessToken,
		f.BaseURL,
		f.Instance,
		f.InactivityThresholdCNPJ,
		f.InactivityThresholdGeneric,
		cnpj,
		generic,
	)
	r, err := scanConfig(row)
	if err != nil {
		return nil, fmt.Errorf("insert config: %w", err)
	}
	return r, nil
}

func queryUpdateConfig(ctx context.Context, db executor, id int64, f model.ConfigFields) (*model.ConfigRow, error) {
	cnpj, generic, err := encodeChannels(f)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `
		UPDATE config_remarketing_crm SET
			id_account = $1, access_token = $2, url_base = $3, instance = $4,
			tempo_inativo_cnpj = $5, tempo_inativo_gen = $6,
			messages_cnpj = $7::jsonb, messages_generico = $8::jsonb
		WHERE id = $9::bigint
		RETURNING `+configColumns,
		f.AccountID,
		f.AccessToken,
		f.BaseURL,
		f.Instance,
		f.InactivityThresholdCNPJ,
		f.InactivityThresholdGeneric,
		cnpj,
		generic,
		id,
	)
	r, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("update config %d: %w", id, err)
	}
	return r, nil
}

func queryDeleteConfig(ctx context.Context, db executor, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM config_remarketing_crm WHERE id = $1::bigint`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// queryBulkUpdateChannel writes msgs into one channel column of every row in
// ids with a single statement, so the set is updated atomically. Ids that
// match no row are left unmatched.
func queryBulkUpdateChannel(ctx context.Context, db executor, ids []int64, ch model.Channel, msgs []model.MessageBlock) (int, error) {
	column, ok := channelColumns[ch]
	if !ok {
		return 0, fmt.Errorf("unknown channel %q", ch)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	data, err := model.EncodeBlocks(msgs)
	if err != nil {
		return 0, fmt.Errorf("marshal messages: %w", err)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE config_remarketing_crm SET `+column+` = $1::jsonb WHERE id = ANY($2::bigint[])`,
		string(data), pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("broadcast to %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func queryListInstances(ctx context.Context, db executor) ([]*model.Instance, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM config_remarketing_crm ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	instances := []*model.Instance{}
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, in)
	}
	return instances, rows.Err()
}

func queryListAllConfigs(ctx context.Context, db executor) ([]*model.ConfigRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+configColumns+` FROM config_remarketing_crm ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	defer rows.Close()

	var configs []*model.ConfigRow
	for rows.Next() {
		r, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		configs = append(configs, r)
	}
	return configs, rows.Err()
}

// encodeChannels marshals both message lists. The results are passed as
// strings because lib/pq sends []byte parameters in bytea format.
func encodeChannels(f model.ConfigFields) (cnpj, generic string, err error) {
	c, err := model.EncodeBlocks(f.MessagesCNPJ)
	if err != nil {
		return "", "", fmt.Errorf("marshal messages_cnpj: %w", err)
	}
	g, err := model.EncodeBlocks(f.MessagesGeneric)
	if err != nil {
		return "", "", fmt.Errorf("marshal messages_generico: %w", err)
	}
	return string(c), string(g), nil
}
