package postgres

import (
	"github.com/alfredjeanlab/odm/internal/store"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRecord scans a single body column and decodes it.
func scanRecord(row scannable) (store.Record, error) {
	var body []byte
	if err := row.Scan(&body); err != nil {
		return nil, err
	}
	return store.UnmarshalRecord(body)
}
