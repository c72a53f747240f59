package postgres

import (
	"database/sql"

	"github.com/jaupesca/remarketing-gateway/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanConfig scans a single row into a model.ConfigRow.
// The row must contain columns in the order defined by configColumns.
func scanConfig(row scannable) (*model.ConfigRow, error) {
	var r model.ConfigRow
	var (
		accountID   sql.NullInt64
		accessToken sql.NullString
		baseURL     sql.NullString
		instance    sql.NullString
		tempoCNPJ   sql.NullInt64
		tempoGen    sql.NullInt64
		msgsCNPJ    []byte
		msgsGeneric []byte
	)

	err := row.Scan(
		&r.ID,
		&accountID,
		&accessToken,
		&baseURL,
		&instance,
		&tempoCNPJ,
		&tempoGen,
		&msgsCNPJ,
		&msgsGeneric,
	)
	if err != nil {
		return nil, err
	}

	r.AccountID = accountID.Int64
	r.AccessToken = accessToken.String
	r.BaseURL = baseURL.String
	r.Instance = instance.String
	r.InactivityThresholdCNPJ = nullIntPtr(tempoCNPJ)
	r.InactivityThresholdGeneric = nullIntPtr(tempoGen)
	r.MessagesCNPJ = model.DecodeStoredBlocks(msgsCNPJ)
	r.MessagesGeneric = model.DecodeStoredBlocks(msgsGeneric)

	return &r, nil
}

// scanInstance scans a single row into a model.Instance.
// The row must contain columns in the order defined by instanceColumns.
func scanInstance(row scannable) (*model.Instance, error) {
	var in model.Instance
	var (
		accountID sql.NullInt64
		instance  sql.NullString
		baseURL   sql.NullString
		tempoCNPJ sql.NullInt64
		tempoGen  sql.NullInt64
	)
	if err := row.Scan(&in.ID, &accountID, &instance, &baseURL, &tempoCNPJ, &tempoGen); err != nil {
		return nil, err
	}
	in.AccountID = accountID.Int64
	in.Instance = instance.String
	in.BaseURL = baseURL.String
	in.InactivityThresholdCNPJ = nullIntPtr(tempoCNPJ)
	in.InactivityThresholdGeneric = nullIntPtr(tempoGen)
	return &in, nil
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
