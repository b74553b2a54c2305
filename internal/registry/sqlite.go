package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vyrodovalexey/signgw/internal/storage/sqlite"
)

// SQLiteRegistry reads descriptors from the interface_info table.
type SQLiteRegistry struct {
	store  *sqlite.Store
	prefix string
	owned  bool
}

// NewSQLiteRegistry creates a registry over store. When owned is true Close
// also closes the store.
func NewSQLiteRegistry(store *sqlite.Store, prefix string, owned bool) *SQLiteRegistry {
	return &SQLiteRegistry{store: store, prefix: prefix, owned: owned}
}

// Register inserts or replaces a descriptor. Path is stored as given.
func (r *SQLiteRegistry) Register(ctx context.Context, d InterfaceDescriptor) error {
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO interface_info (id, url, method, owner_id, enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			method = excluded.method,
			owner_id = excluded.owner_id,
			enabled = excluded.enabled`,
		d.ID, d.Path, normalizeMethod(d.Method), d.OwnerID, d.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to register interface %s: %w", d.ID, err)
	}
	return nil
}

// Resolve implements Registry.
func (r *SQLiteRegistry) Resolve(ctx context.Context, path, method string) (*InterfaceDescriptor, error) {
	key := r.prefix + path
	m := normalizeMethod(method)

	var d InterfaceDescriptor
	err := r.store.DB().QueryRowContext(ctx, `
		SELECT id, url, method, owner_id, enabled
		FROM interface_info
		WHERE url = ? AND method = ?`,
		key, m,
	).Scan(&d.ID, &d.Path, &d.Method, &d.OwnerID, &d.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", m, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &d, nil
}

// Ping implements Pinger.
func (r *SQLiteRegistry) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Close implements Registry.
func (r *SQLiteRegistry) Close() error {
	if r.owned {
		return r.store.Close()
	}
	return nil
}
