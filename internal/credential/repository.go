package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository persists credentials.
type Repository interface {
	Create(ctx context.Context, cred Credential) error
	FindByIdentity(ctx context.Context, identity string) (Credential, error)
}

// DBTX is the part of pgx the repository uses. *pgxpool.Pool, *pgx.Conn and
// pgx.Tx all satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository builds a Postgres-backed credential repository.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new credential, mapping the unique constraint on identity to ErrDuplicate.
func (r *PostgresRepository) Create(ctx context.Context, cred Credential) error {
	id, err := uuid.Parse(cred.ID)
	if err != nil {
		return fmt.Errorf("parse credential id: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO credentials (id, identity, secret_hash, created_at)
        VALUES ($1, $2, $3, $4)`, id, cred.Identity, cred.SecretHash, cred.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// FindByIdentity fetches a credential by its identity.
func (r *PostgresRepository) FindByIdentity(ctx context.Context, identity string) (Credential, error) {
	row := r.db.QueryRow(ctx, `SELECT id, identity, secret_hash, created_at FROM credentials WHERE identity = $1`, identity)
	var (
		id        uuid.UUID
		createdAt time.Time
		cred      Credential
	)
	if err := row.Scan(&id, &cred.Identity, &cred.SecretHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("select credential: %w", err)
	}
	cred.ID = id.String()
	cred.CreatedAt = createdAt.UTC()
	return cred, nil
}
