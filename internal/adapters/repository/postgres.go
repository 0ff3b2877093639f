package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/veridianlabs/leadvault/internal/core/domain"
)

// PostgresRepository implements ports.LeadRepository and
// ports.CredentialRepository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates and returns a new PostgresRepository instance.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateLead(ctx context.Context, lead *domain.Lead) error {
	query := `INSERT INTO leads (id, company, name, email, phone, network, status, tier, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query, lead.ID, lead.Company, lead.Name, lead.Email, lead.Phone,
		string(lead.Network), string(lead.Status), string(lead.Tier), lead.CreatedAt, lead.UpdatedAt)
	return err
}

func (r *PostgresRepository) UpsertLead(ctx context.Context, lead *domain.Lead) error {
	query := `INSERT INTO leads (id, company, name, email, phone, network, status, tier, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          ON CONFLICT (id) DO UPDATE SET
	            company = EXCLUDED.company, name = EXCLUDED.name, email = EXCLUDED.email,
	            phone = EXCLUDED.phone, network = EXCLUDED.network, status = EXCLUDED.status,
	            tier = EXCLUDED.tier, updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query, lead.ID, lead.Company, lead.Name, lead.Email, lead.Phone,
		string(lead.Network), string(lead.Status), string(lead.Tier), lead.CreatedAt, lead.UpdatedAt)
	return err
}

func (r *PostgresRepository) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	query := `SELECT id, company, name, email, phone, network, status, tier, created_at, updated_at
	          FROM leads WHERE id = $1`
	var lead domain.Lead
	errRow := r.db.QueryRowContext(ctx, query, id).Scan(&lead.ID, &lead.Company, &lead.Name, &lead.Email,
		&lead.Phone, &lead.Network, &lead.Status, &lead.Tier, &lead.CreatedAt, &lead.UpdatedAt)
	if errors.Is(errRow, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if errRow != nil {
		return nil, errRow
	}
	return &lead, nil
}

func (r *PostgresRepository) ListLeads(ctx context.Context, q domain.LeadQuery) ([]domain.Lead, error) {
	query := `SELECT id, company, name, email, phone, network, status, tier, created_at, updated_at FROM leads`
	var conds []string
	var args []any
	if q.ID != "" {
		args = append(args, q.ID)
		conds = append(conds, fmt.Sprintf("id = $%d", len(args)))
	}
	if q.Company != "" {
		args = append(args, q.Company)
		conds = append(conds, fmt.Sprintf("company = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rows, errQuery := r.db.QueryContext(ctx, query, args...)
	if errQuery != nil {
		return nil, errQuery
	}
	defer func() { if errClose := rows.Close(); errClose != nil { log.Printf("failed to close rows: %v", errClose) } }()

	var leads []domain.Lead
	for rows.Next() {
		var lead domain.Lead
		if errScan := rows.Scan(&lead.ID, &lead.Company, &lead.Name, &lead.Email, &lead.Phone,
			&lead.Network, &lead.Status, &lead.Tier, &lead.CreatedAt, &lead.UpdatedAt); errScan != nil {
			return nil, errScan
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *PostgresRepository) UpdateLead(ctx context.Context, lead *domain.Lead) error {
	query := `UPDATE leads SET company = $1, name = $2, email = $3, phone = $4, network = $5,
	          status = $6, tier = $7, updated_at = $8 WHERE id = $9`
	res, err := r.db.ExecContext(ctx, query, lead.Company, lead.Name, lead.Email, lead.Phone,
		string(lead.Network), string(lead.Status), string(lead.Tier), lead.UpdatedAt, lead.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteLead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) LeadExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	query := `INSERT INTO api_keys (id, owner, key_hash, key_prefix, role, rate_limit, active, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, key.ID, key.Owner, key.KeyHash, key.KeyPrefix,
		string(key.Role), key.RateLimit, key.Active, key.CreatedAt)
	return err
}

func (r *PostgresRepository) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	query := `SELECT id, owner, key_hash, key_prefix, role, rate_limit, active, created_at
	          FROM api_keys WHERE key_hash = $1`
	var key domain.APIKey
	errRow := r.db.QueryRowContext(ctx, query, keyHash).Scan(&key.ID, &key.Owner, &key.KeyHash,
		&key.KeyPrefix, &key.Role, &key.RateLimit, &key.Active, &key.CreatedAt)
	if errors.Is(errRow, sql.ErrNoRows) {
		return nil, nil
	}
	if errRow != nil {
		return nil, errRow
	}
	return &key, nil
}

func (r *PostgresRepository) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	query := `SELECT id, owner, key_hash, key_prefix, role, rate_limit, active, created_at
	          FROM api_keys ORDER BY created_at ASC`
	rows, errQuery := r.db.QueryContext(ctx, query)
	if errQuery != nil {
		return nil, errQuery
	}
	defer func() { if errClose := rows.Close(); errClose != nil { log.Printf("failed to close rows: %v", errClose) } }()

	var keys []domain.APIKey
	for rows.Next() {
		var key domain.APIKey
		if errScan := rows.Scan(&key.ID, &key.Owner, &key.KeyHash, &key.KeyPrefix, &key.Role,
			&key.RateLimit, &key.Active, &key.CreatedAt); errScan != nil {
			return nil, errScan
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeAPIKey disables a key. Revoking an already-disabled key is a no-op
// success.
func (r *PostgresRepository) RevokeAPIKey(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET active = FALSE WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) DeleteAPIKey(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	return err
}
