package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityStore is the contract every backend in this package satisfies.
type identityStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Identity, error)
	Create(ctx context.Context, identity *domain.Identity) error
	FindOrCreateForSignupChallenge(ctx context.Context, challenge domain.SignupChallenge) (*domain.Identity, domain.ChallengeOutcome, error)
	SetChallenge(ctx context.Context, id uuid.UUID, codeHash string, expiresAt time.Time) error
	ClearChallenge(ctx context.Context, id uuid.UUID, expectedHash string, verifiedAt *time.Time) (bool, error)
	AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error
}

var (
	_ identityStore = (*MemoryIdentityStore)(nil)
	_ identityStore = (*IdentitiesRepository)(nil)
	_ identityStore = (*DynamoIdentityStore)(nil)
)

// uniqueEmail keeps shared backends free of collisions between runs.
func uniqueEmail(prefix string) string {
	return prefix + "+" + uuid.NewString()[:8] + "@example.com"
}

func signupChallenge(email, hash string) domain.SignupChallenge {
	dob := time.Date(1995, time.March, 4, 0, 0, 0, 0, time.UTC)
	return domain.SignupChallenge{
		Email:         email,
		Name:          "Ada",
		DateOfBirth:   &dob,
		CodeHash:      hash,
		CodeExpiresAt: time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second),
	}
}

func runIdentityStoreSuite(t *testing.T, newStore func(t *testing.T) identityStore) {
	ctx := context.Background()

	t.Run("signup challenge creates then refreshes", func(t *testing.T) {
		store := newStore(t)
		email := uniqueEmail("signup")

		created, outcome, err := store.FindOrCreateForSignupChallenge(ctx, signupChallenge(email, "hash-1"))
		require.NoError(t, err)
		assert.Equal(t, domain.ChallengeCreated, outcome)
		assert.Equal(t, email, created.Email)
		assert.Equal(t, "Ada", created.Name)
		require.NotNil(t, created.DateOfBirth)
		assert.Equal(t, "1995-03-04", created.DateOfBirth.UTC().Format(domain.DateLayout))
		assert.True(t, created.HasPendingCode())

		again, outcome, err := store.FindOrCreateForSignupChallenge(ctx, signupChallenge(email, "hash-2"))
		require.NoError(t, err)
		assert.Equal(t, domain.ChallengeExisting, outcome)
		assert.Equal(t, created.ID, again.ID)

		stored, err := store.GetByEmail(ctx, email)
		require.NoError(t, err)
		require.NotNil(t, stored.CodeHash)
		assert.Equal(t, "hash-2", *stored.CodeHash)
	})

	t.Run("signup challenge rejects verified identity", func(t *testing.T) {
		store := newStore(t)
		email := uniqueEmail("verified")

		created, _, err := store.FindOrCreateForSignupChallenge(ctx, signupChallenge(email, "hash-1"))
		require.NoError(t, err)

		now := time.Now()
		cleared, err := store.ClearChallenge(ctx, created.ID, "hash-1", &now)
		require.NoError(t, err)
		require.True(t, cleared)

		_, _, err = store.FindOrCreateForSignupChallenge(ctx, signupChallenge(email, "hash-2"))
		assert.ErrorIs(t, err, domain.ErrIdentityAlreadyExists)
	})

	t.Run("clear challenge is conditional", func(t *testing.T) {
		store := newStore(t)
		created, _, err := store.FindOrCreateForSignupChallenge(ctx, signupChallenge(uniqueEmail("clear"), "hash-1"))
		require.NoError(t, err)

		cleared, err := store.ClearChallenge(ctx, created.ID, "other", nil)
		require.NoError(t, err)
		assert.False(t, cleared)

		now := time.Now().UTC().Truncate(time.Second)
		cleared, err = store.ClearChallenge(ctx, created.ID, "hash-1", &now)
		require.NoError(t, err)
		assert.True(t, cleared)

		cleared, err = store.ClearChallenge(ctx, created.ID, "hash-1", &now)
		require.NoError(t, err)
		assert.False(t, cleared)

		stored, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, stored.HasPendingCode())
		assert.Nil(t, stored.CodeExpiresAt)
		require.NotNil(t, stored.VerifiedAt)
		assert.WithinDuration(t, now, *stored.VerifiedAt, time.Second)
	})

	t.Run("concurrent clears succeed once", func(t *testing.T) {
		store := newStore(t)
		created, _, err := store.FindOrCreateForSignupChallenge(ctx, signupChallenge(uniqueEmail("race"), "hash-1"))
		require.NoError(t, err)

		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				now := time.Now()
				ok, err := store.ClearChallenge(ctx, created.ID, "hash-1", &now)
				if err == nil && ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("set challenge overwrites", func(t *testing.T) {
		store := newStore(t)
		created, _, err := store.FindOrCreateForSignupChallenge(ctx, signupChallenge(uniqueEmail("set"), "hash-1"))
		require.NoError(t, err)

		expiresAt := time.Now().Add(time.Minute).UTC().Truncate(time.Second)
		require.NoError(t, store.SetChallenge(ctx, created.ID, "hash-2", expiresAt))

		stored, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.CodeHash)
		assert.Equal(t, "hash-2", *stored.CodeHash)
		require.NotNil(t, stored.CodeExpiresAt)
		assert.True(t, expiresAt.Equal(*stored.CodeExpiresAt))

		err = store.SetChallenge(ctx, uuid.New(), "hash-3", expiresAt)
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	})

	t.Run("create enforces unique email and external id", func(t *testing.T) {
		store := newStore(t)
		email := uniqueEmail("unique")
		subject := "sub-" + uuid.NewString()

		first := &domain.Identity{ID: uuid.New(), Email: email, Name: "First", ExternalID: &subject}
		require.NoError(t, store.Create(ctx, first))

		dupEmail := &domain.Identity{ID: uuid.New(), Email: email, Name: "Second"}
		assert.ErrorIs(t, store.Create(ctx, dupEmail), domain.ErrIdentityAlreadyExists)

		dupSubject := &domain.Identity{ID: uuid.New(), Email: uniqueEmail("other"), Name: "Third", ExternalID: &subject}
		assert.ErrorIs(t, store.Create(ctx, dupSubject), domain.ErrExternalIDTaken)

		got, err := store.GetByExternalID(ctx, subject)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("empty emails do not collide", func(t *testing.T) {
		store := newStore(t)
		a := "sub-" + uuid.NewString()
		b := "sub-" + uuid.NewString()

		require.NoError(t, store.Create(ctx, &domain.Identity{ID: uuid.New(), Name: "A", ExternalID: &a}))
		require.NoError(t, store.Create(ctx, &domain.Identity{ID: uuid.New(), Name: "B", ExternalID: &b}))

		_, err := store.GetByEmail(ctx, "")
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	})

	t.Run("attach external id", func(t *testing.T) {
		store := newStore(t)
		created, _, err := store.FindOrCreateForSignupChallenge(ctx, signupChallenge(uniqueEmail("attach"), "hash-1"))
		require.NoError(t, err)

		subject := "sub-" + uuid.NewString()
		require.NoError(t, store.AttachExternalID(ctx, created.ID, subject))

		got, err := store.GetByExternalID(ctx, subject)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		err = store.AttachExternalID(ctx, created.ID, "sub-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrExternalIDTaken)
	})

	t.Run("attach external id conflicts", func(t *testing.T) {
		store := newStore(t)
		err := store.AttachExternalID(ctx, uuid.New(), "sub-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

		owner, _, err := store.FindOrCreateForSignupChallenge(ctx, signupChallenge(uniqueEmail("owner"), "hash-1"))
		require.NoError(t, err)
		other, _, err := store.FindOrCreateForSignupChallenge(ctx, signupChallenge(uniqueEmail("other"), "hash-2"))
		require.NoError(t, err)

		subject := "sub-" + uuid.NewString()
		require.NoError(t, store.AttachExternalID(ctx, owner.ID, subject))
		err = store.AttachExternalID(ctx, other.ID, subject)
		assert.ErrorIs(t, err, domain.ErrExternalIDTaken)

		got, err := store.GetByID(ctx, other.ID)
		require.NoError(t, err)
		assert.Nil(t, got.ExternalID)
	})

	t.Run("lookups report not found", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
		_, err = store.GetByEmail(ctx, uniqueEmail("missing"))
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
		_, err = store.GetByExternalID(ctx, "sub-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	})
}
