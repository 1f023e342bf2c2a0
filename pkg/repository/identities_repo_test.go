package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}

	db, err := NewDB(context.Background(), DBConfig{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func TestIdentitiesRepository(t *testing.T) {
	db := openTestDB(t)

	runIdentityStoreSuite(t, func(t *testing.T) identityStore {
		return NewIdentitiesRepository(db)
	})
}

func TestMapUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "email constraint",
			err:  &pq.Error{Code: errUniqueViolation, Constraint: emailConstraint},
			want: domain.ErrIdentityAlreadyExists,
		},
		{
			name: "external id constraint",
			err:  &pq.Error{Code: errUniqueViolation, Constraint: externalIDConstraint},
			want: domain.ErrExternalIDTaken,
		},
		{
			name: "primary key",
			err:  &pq.Error{Code: errUniqueViolation, Constraint: "identities_pkey"},
			want: domain.ErrIdentityAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapUniqueViolation(tt.err), tt.want)
		})
	}

	other := errors.New("connection reset")
	assert.Equal(t, other, mapUniqueViolation(other))
	assert.Nil(t, mapUniqueViolation(nil))

	fk := &pq.Error{Code: "23503"}
	assert.Equal(t, error(fk), mapUniqueViolation(fk))
}

func TestTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	repo := NewIdentitiesRepository(db)
	ctx := context.Background()

	identity := &domain.Identity{ID: uuid.New(), Email: uniqueEmail("tx"), Name: "Tx"}
	boom := errors.New("boom")
	err := Tx(ctx, db, func(tx *sql.Tx) error {
		if err := repo.CreateTx(ctx, tx, identity); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, identity.ID)
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

	require.NoError(t, Tx(ctx, db, func(tx *sql.Tx) error {
		return repo.CreateTx(ctx, tx, identity)
	}))
	got, err := repo.GetByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.Email, got.Email)
}
