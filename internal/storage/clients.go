package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/copperline/orderd/internal/model"
)

// CreateClient inserts an API client.
func (db *DB) CreateClient(ctx context.Context, c model.Client) (model.Client, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := db.pool.Exec(ctx,
		`INSERT INTO clients (id, client_id, role, api_key_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.ClientID, c.Role, c.APIKeyHash, c.CreatedAt,
	)
	if err != nil {
		return model.Client{}, fmt.Errorf("storage: create client: %w", err)
	}
	return c, nil
}

// GetClientByClientID looks up a client by its external identifier.
// A miss returns a nil client, not an error.
func (db *DB) GetClientByClientID(ctx context.Context, clientID string) (*model.Client, error) {
	var c model.Client
	err := db.pool.QueryRow(ctx,
		`SELECT id, client_id, role, api_key_hash, created_at
		 FROM clients WHERE client_id = $1`, clientID,
	).Scan(&c.ID, &c.ClientID, &c.Role, &c.APIKeyHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get client: %w", err)
	}
	return &c, nil
}

// CountClients returns the number of provisioned API clients.
func (db *DB) CountClients(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count clients: %w", err)
	}
	return n, nil
}
