//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"civilregistry/internal/models"
	"civilregistry/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("civilregistry"),
		tcpostgres.WithUsername("civreg"),
		tcpostgres.WithPassword("civreg"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin, err := s.CreateUser(ctx, models.User{Username: "admin", DisplayName: "admin", PasswordHash: "h", IsAdmin: true, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, models.BootstrapAdminID, admin.ID)

	_, err = s.CreateUser(ctx, models.User{Username: "admin", DisplayName: "dup", PasswordHash: "h"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	bob, err := s.CreateUser(ctx, models.User{Username: "bob", DisplayName: "bob", PasswordHash: "h", IsActive: true})
	require.NoError(t, err)
	alice, err := s.CreateUser(ctx, models.User{Username: "alice", DisplayName: "alice", PasswordHash: "h", IsActive: true})
	require.NoError(t, err)

	t.Run("status update", func(t *testing.T) {
		require.NoError(t, s.UpdateUserStatus(ctx, bob.ID, false))
		got, err := s.GetUserByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		assert.ErrorIs(t, s.UpdateUserStatus(ctx, 999, true), storage.ErrNotFound)
	})

	t.Run("audit ordering and counts", func(t *testing.T) {
		ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		var ids []int64
		for _, id := range []int64{bob.ID, alice.ID, bob.ID, alice.ID} {
			entry, err := s.InsertAuditLog(ctx, models.AuditLog{UserID: &id, Action: "SEARCH", CreatedAt: ts})
			require.NoError(t, err)
			ids = append(ids, entry.ID)
		}

		logs, total, err := s.ListAuditLogs(ctx, models.PageRequest{})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, ids[3], logs[0].ID)

		searches, err := s.ListRecentByAction(ctx, "SEARCH", &bob.ID, 10)
		require.NoError(t, err)
		assert.Len(t, searches, 2)

		all, err := s.ListRecentByAction(ctx, "SEARCH", nil, 10)
		require.NoError(t, err)
		assert.Len(t, all, 4)

		counts, err := s.CountAuditLogsPerUser(ctx)
		require.NoError(t, err)
		require.Len(t, counts, 3)
		assert.Equal(t, []string{"alice", "bob", "admin"},
			[]string{counts[0].Username, counts[1].Username, counts[2].Username})
	})

	t.Run("local citizens", func(t *testing.T) {
		require.NoError(t, s.InsertCitizen(ctx, models.Citizen{
			NationalID: "400000001", FirstName: "Sara", FatherName: "Omar", GrandfatherName: "Ali", LastName: "50%_off",
			Gender: models.GenderFemale, DateOfBirth: "1990-01-01",
		}))
		require.NoError(t, s.InsertCitizen(ctx, models.Citizen{
			NationalID: "400000002", FirstName: "Samir", FatherName: "Omar", GrandfatherName: "Ali", LastName: "Haddad",
		}))
		assert.ErrorIs(t, s.InsertCitizen(ctx, models.Citizen{NationalID: "400000001", FirstName: "x", FatherName: "x", GrandfatherName: "x", LastName: "x"}),
			storage.ErrAlreadyExists)

		got, err := s.SearchCitizens(ctx, models.CitizenQuery{FirstName: "sa", FatherName: "omar"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "1990-01-01", got[0].DateOfBirth)
		assert.Empty(t, got[1].Gender)

		got, err = s.SearchCitizens(ctx, models.CitizenQuery{LastName: "%_"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "400000001", got[0].NationalID)

		got, err = s.SearchCitizens(ctx, models.CitizenQuery{NationalID: "400000002", Limit: 5})
		require.NoError(t, err)
		require.Len(t, got, 1)
	})
}
