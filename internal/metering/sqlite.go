package metering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vyrodovalexey/signgw/internal/storage/sqlite"
)

// SQLiteCounter keeps counts in the user_interface_info table. Each
// invocation raises total_num and consumes one unit of left_num.
type SQLiteCounter struct {
	store *sqlite.Store
	owned bool
}

// NewSQLiteCounter creates a counter over store. When owned is true Close
// also closes the store.
func NewSQLiteCounter(store *sqlite.Store, owned bool) *SQLiteCounter {
	return &SQLiteCounter{store: store, owned: owned}
}

// Increment implements Counter.
func (c *SQLiteCounter) Increment(ctx context.Context, userID, interfaceID string) error {
	_, err := c.store.DB().ExecContext(ctx, `
		INSERT INTO user_interface_info (user_id, interface_id, total_num, left_num, updated_at)
		VALUES (?, ?, 1, -1, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, interface_id) DO UPDATE SET
			total_num = total_num + 1,
			left_num = left_num - 1,
			updated_at = CURRENT_TIMESTAMP`,
		userID, interfaceID,
	)
	if err != nil {
		return fmt.Errorf("sqlite increment %s/%s: %w", userID, interfaceID, err)
	}
	return nil
}

// Grant sets the remaining quota of (userID, interfaceID).
func (c *SQLiteCounter) Grant(ctx context.Context, userID, interfaceID string, left int64) error {
	_, err := c.store.DB().ExecContext(ctx, `
		INSERT INTO user_interface_info (user_id, interface_id, total_num, left_num, updated_at)
		VALUES (?, ?, 0, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, interface_id) DO UPDATE SET
			left_num = excluded.left_num,
			updated_at = CURRENT_TIMESTAMP`,
		userID, interfaceID, left,
	)
	if err != nil {
		return fmt.Errorf("sqlite grant %s/%s: %w", userID, interfaceID, err)
	}
	return nil
}

// Counts returns total_num and left_num for (userID, interfaceID). A missing
// row reads as zero.
func (c *SQLiteCounter) Counts(ctx context.Context, userID, interfaceID string) (total, left int64, err error) {
	err = c.store.DB().QueryRowContext(ctx, `
		SELECT total_num, left_num FROM user_interface_info
		WHERE user_id = ? AND interface_id = ?`,
		userID, interfaceID,
	).Scan(&total, &left)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	return total, left, err
}

// Ping implements Pinger.
func (c *SQLiteCounter) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close implements Counter.
func (c *SQLiteCounter) Close() error {
	if c.owned {
		return c.store.Close()
	}
	return nil
}
