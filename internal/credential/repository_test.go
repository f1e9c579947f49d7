package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRow struct {
	err    error
	values []any
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = r.values[i].(uuid.UUID)
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			*p = r.values[i].([]byte)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

type stubDB struct {
	execErr error
	row     stubRow
	args    []any
}

func (s *stubDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	s.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), s.execErr
}

func (s *stubDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	s.args = args
	return s.row
}

func newCredential() Credential {
	return Credential{
		ID:         uuid.NewString(),
		Identity:   "alice",
		SecretHash: []byte("hash"),
		CreatedAt:  time.Now(),
	}
}

func TestPostgresCreateMapsUniqueViolation(t *testing.T) {
	db := &stubDB{execErr: &pgconn.PgError{Code: "23505", ConstraintName: "credentials_identity_key"}}
	repo := NewPostgresRepository(db)

	err := repo.Create(context.Background(), newCredential())
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestPostgresCreateWrapsOtherErrors(t *testing.T) {
	boom := &pgconn.PgError{Code: "08006"}
	repo := NewPostgresRepository(&stubDB{execErr: boom})

	err := repo.Create(context.Background(), newCredential())
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrDuplicate)
}

func TestPostgresCreateRejectsBadID(t *testing.T) {
	db := &stubDB{}
	cred := newCredential()
	cred.ID = "not-a-uuid"

	require.Error(t, NewPostgresRepository(db).Create(context.Background(), cred))
	require.Nil(t, db.args, "nothing is sent to the database")
}

func TestPostgresFindMapsNoRows(t *testing.T) {
	repo := NewPostgresRepository(&stubDB{row: stubRow{err: pgx.ErrNoRows}})

	_, err := repo.FindByIdentity(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresFindWrapsOtherErrors(t *testing.T) {
	boom := errors.New("conn reset")
	repo := NewPostgresRepository(&stubDB{row: stubRow{err: boom}})

	_, err := repo.FindByIdentity(context.Background(), "alice")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgresFindScansRow(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	db := &stubDB{row: stubRow{values: []any{id, "alice", []byte("hash"), created}}}

	cred, err := NewPostgresRepository(db).FindByIdentity(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, id.String(), cred.ID)
	assert.Equal(t, "alice", cred.Identity)
	assert.Equal(t, []byte("hash"), cred.SecretHash)
	assert.Equal(t, time.UTC, cred.CreatedAt.Location())
	assert.Equal(t, []any{"alice"}, db.args)
}
