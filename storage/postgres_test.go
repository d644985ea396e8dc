package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/migrations"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/storage"
)

var repo *storage.PostgresRepo

func TestMain(m *testing.M) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine3.22",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testusername"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	if err := migrations.Migrate(connString); err != nil {
		panic(err)
	}

	repo, err = storage.NewPostgresRepo(ctx, connString)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	// Cleanup
	postgresContainer.Terminate(ctx)
	os.Exit(code)
}

func TestPresence(t *testing.T) {
	ctx := context.Background()

	t.Run("PutLogin", func(t *testing.T) {
		require.NoError(t, repo.PutLogin(ctx, "conn-1"))

		p, err := repo.GetPresence(ctx, "conn-1")
		assert.NoError(t, err)
		assert.Equal(t, "conn-1", p.ConnectionID)
		assert.False(t, p.InRoom())
	})

	t.Run("PutLogin_Reconnect", func(t *testing.T) {
		assert.NoError(t, repo.PutLogin(ctx, "conn-1"))
	})

	t.Run("PutPresence_Join", func(t *testing.T) {
		require.NoError(t, repo.PutPresence(ctx, "conn-1", "room-a", "alice"))

		p, err := repo.GetPresence(ctx, "conn-1")
		assert.NoError(t, err)
		assert.Equal(t, "room-a", p.RoomID)
		assert.Equal(t, "alice", p.UserName)
		assert.True(t, p.InRoom())
	})

	t.Run("PutPresence_Rejoin", func(t *testing.T) {
		require.NoError(t, repo.PutPresence(ctx, "conn-1", "room-b", "alicia"))

		p, err := repo.GetPresence(ctx, "conn-1")
		assert.NoError(t, err)
		assert.Equal(t, "room-b", p.RoomID)
		assert.Equal(t, "alicia", p.UserName)
	})

	t.Run("GetPresence_NotFound", func(t *testing.T) {
		_, err := repo.GetPresence(ctx, "ghost-conn")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DeletePresence", func(t *testing.T) {
		require.NoError(t, repo.DeletePresence(ctx, "conn-1"))

		_, err := repo.GetPresence(ctx, "conn-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DeletePresence_Absent", func(t *testing.T) {
		assert.NoError(t, repo.DeletePresence(ctx, "conn-1"))
	})
}

func TestRoomMembers(t *testing.T) {
	ctx := context.Background()

	t.Run("JoinOrder", func(t *testing.T) {
		require.NoError(t, repo.AddMember(ctx, "room-m", "conn-c"))
		require.NoError(t, repo.AddMember(ctx, "room-m", "conn-a"))
		require.NoError(t, repo.AddMember(ctx, "room-m", "conn-b"))

		members, err := repo.ListMembers(ctx, "room-m")
		assert.NoError(t, err)
		assert.Equal(t, []string{"conn-c", "conn-a", "conn-b"}, members)
	})

	t.Run("AddMember_Duplicate", func(t *testing.T) {
		require.NoError(t, repo.AddMember(ctx, "room-m", "conn-a"))

		members, err := repo.ListMembers(ctx, "room-m")
		assert.NoError(t, err)
		assert.Len(t, members, 3)
	})

	t.Run("RoomsAreIndependent", func(t *testing.T) {
		require.NoError(t, repo.AddMember(ctx, "room-n", "conn-a"))

		members, err := repo.ListMembers(ctx, "room-n")
		assert.NoError(t, err)
		assert.Equal(t, []string{"conn-a"}, members)
	})

	t.Run("RemoveMember", func(t *testing.T) {
		require.NoError(t, repo.RemoveMember(ctx, "room-m", "conn-a"))

		members, err := repo.ListMembers(ctx, "room-m")
		assert.NoError(t, err)
		assert.Equal(t, []string{"conn-c", "conn-b"}, members)
	})

	t.Run("RemoveMember_Absent", func(t *testing.T) {
		assert.NoError(t, repo.RemoveMember(ctx, "room-m", "conn-a"))
	})

	t.Run("ListMembers_EmptyRoom", func(t *testing.T) {
		members, err := repo.ListMembers(ctx, "room-empty")
		assert.NoError(t, err)
		assert.Empty(t, members)
	})
}

func TestScores(t *testing.T) {
	ctx := context.Background()

	t.Run("PutScore", func(t *testing.T) {
		rec := domain.ScoreRecord{
			ConnectionID: "conn-s",
			StrokeID:     "stroke-1",
			ArtifactKey:  "results/conn-s/aaa.png",
			Score:        8123.5,
		}
		require.NoError(t, repo.PutScore(ctx, rec))

		got, err := repo.GetScore(ctx, "conn-s", "stroke-1")
		assert.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("PutScore_Redelivery", func(t *testing.T) {
		rec := domain.ScoreRecord{
			ConnectionID: "conn-s",
			StrokeID:     "stroke-1",
			ArtifactKey:  "results/conn-s/bbb.png",
			Score:        8123.5,
		}
		require.NoError(t, repo.PutScore(ctx, rec))

		got, err := repo.GetScore(ctx, "conn-s", "stroke-1")
		assert.NoError(t, err)
		assert.Equal(t, "results/conn-s/bbb.png", got.ArtifactKey)
	})

	t.Run("GetScore_NotFound", func(t *testing.T) {
		_, err := repo.GetScore(ctx, "conn-s", "stroke-999")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
