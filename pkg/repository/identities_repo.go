package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	errUniqueViolation pq.ErrorCode = "23505"

	emailConstraint      = "identities_email_key"
	externalIDConstraint = "identities_external_id_key"
)

const identityColumns = `id, email, name, date_of_birth, external_id, otp_hash, otp_expires_at,
		       verified_at, created_at, updated_at`

// IdentitiesRepository handles identity persistence in Postgres.
type IdentitiesRepository struct {
	db *sql.DB
}

// NewIdentitiesRepository creates a new identities repository.
func NewIdentitiesRepository(db *sql.DB) *IdentitiesRepository {
	return &IdentitiesRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner, extra ...any) (*domain.Identity, error) {
	identity := &domain.Identity{}
	dest := []any{
		&identity.ID, &identity.Email, &identity.Name, &identity.DateOfBirth, &identity.ExternalID,
		&identity.CodeHash, &identity.CodeExpiresAt, &identity.VerifiedAt,
		&identity.CreatedAt, &identity.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	return identity, nil
}

// GetByID retrieves an identity by ID.
func (r *IdentitiesRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return scanIdentity(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an identity by email.
func (r *IdentitiesRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	if email == "" {
		return nil, domain.ErrIdentityNotFound
	}
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`
	return scanIdentity(r.db.QueryRowContext(ctx, query, email))
}

// GetByExternalID retrieves an identity by OAuth subject.
func (r *IdentitiesRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE external_id = $1`
	return scanIdentity(r.db.QueryRowContext(ctx, query, externalID))
}

// Create inserts a new identity.
func (r *IdentitiesRepository) Create(ctx context.Context, identity *domain.Identity) error {
	return r.CreateTx(ctx, r.db, identity)
}

// CreateTx inserts a new identity using q, which may be a transaction.
func (r *IdentitiesRepository) CreateTx(ctx context.Context, q Querier, identity *domain.Identity) error {
	now := time.Now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	if identity.UpdatedAt.IsZero() {
		identity.UpdatedAt = now
	}

	query := `
		INSERT INTO identities (id, email, name, date_of_birth, external_id, otp_hash, otp_expires_at,
		                        verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.ExecContext(ctx, query,
		identity.ID, identity.Email, identity.Name, identity.DateOfBirth, identity.ExternalID,
		identity.CodeHash, identity.CodeExpiresAt, identity.VerifiedAt,
		identity.CreatedAt, identity.UpdatedAt,
	)
	return mapUniqueViolation(err)
}

// FindOrCreateForSignupChallenge inserts a pending identity or refreshes the
// code of an existing pending one in a single statement.
func (r *IdentitiesRepository) FindOrCreateForSignupChallenge(ctx context.Context, challenge domain.SignupChallenge) (*domain.Identity, domain.ChallengeOutcome, error) {
	query := `
		INSERT INTO identities (id, email, name, date_of_birth, otp_hash, otp_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (email) WHERE email <> '' DO UPDATE
		SET otp_hash = EXCLUDED.otp_hash,
		    otp_expires_at = EXCLUDED.otp_expires_at,
		    updated_at = NOW()
		WHERE identities.otp_hash IS NOT NULL AND identities.otp_hash <> ''
		RETURNING ` + identityColumns + `, (xmax = 0) AS created
	`
	var created bool
	identity, err := scanIdentity(r.db.QueryRowContext(ctx, query,
		uuid.New(), challenge.Email, challenge.Name, challenge.DateOfBirth,
		challenge.CodeHash, challenge.CodeExpiresAt,
	), &created)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		// The conflicting row exists but is not pending.
		return nil, 0, domain.ErrIdentityAlreadyExists
	}
	if err != nil {
		return nil, 0, mapUniqueViolation(err)
	}

	if created {
		return identity, domain.ChallengeCreated, nil
	}
	return identity, domain.ChallengeExisting, nil
}

// SetChallenge overwrites the pending code of an identity.
func (r *IdentitiesRepository) SetChallenge(ctx context.Context, id uuid.UUID, codeHash string, expiresAt time.Time) error {
	query := `
		UPDATE identities
		SET otp_hash = $2, otp_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, codeHash, expiresAt)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

// ClearChallenge clears the pending code only while it still equals
// expectedHash. Row locking makes exactly one concurrent caller win.
func (r *IdentitiesRepository) ClearChallenge(ctx context.Context, id uuid.UUID, expectedHash string, verifiedAt *time.Time) (bool, error) {
	query := `
		UPDATE identities
		SET otp_hash = NULL,
		    otp_expires_at = NULL,
		    verified_at = COALESCE($3, verified_at),
		    updated_at = NOW()
		WHERE id = $1 AND otp_hash = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, expectedHash, verifiedAt)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// AttachExternalID links an OAuth subject to an identity that has none.
// The row is locked so the existence and ownership checks hold until commit.
func (r *IdentitiesRepository) AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		var current sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT external_id FROM identities WHERE id = $1 FOR UPDATE`, id,
		).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrIdentityNotFound
		}
		if err != nil {
			return err
		}
		if current.Valid {
			return domain.ErrExternalIDTaken
		}

		query := `
			UPDATE identities
			SET external_id = $2, updated_at = NOW()
			WHERE id = $1
		`
		_, err = tx.ExecContext(ctx, query, id, externalID)
		return mapUniqueViolation(err)
	})
}

// mapUniqueViolation turns constraint violations into domain errors.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != errUniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case externalIDConstraint:
		return domain.ErrExternalIDTaken
	case emailConstraint:
		return domain.ErrIdentityAlreadyExists
	default:
		return domain.ErrIdentityAlreadyExists
	}
}
