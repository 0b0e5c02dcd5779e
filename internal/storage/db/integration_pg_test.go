//go:build integration

package db

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func mustSetupPostgres(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()
	dbName, dbUser, dbPassword := "tinychan", "user", "password"

	container, err := postgres.Run(ctx,
		"postgres:15.3-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			// postgres restarts once after init, wait for the second ready line
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	containerPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	port, err := strconv.Atoi(containerPort.Port())
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	storage, err := Connect(ctx, &config.DB{
		Driver: DriverPostgres, Host: host, Port: port, User: dbUser, Password: dbPassword, Dbname: dbName,
	}, DefaultConnectionConfig())
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	require.NoError(t, storage.Migrate(ctx))
	return storage
}

func TestPostgresPostLifecycle(t *testing.T) {
	s := mustSetupPostgres(t)
	ctx := context.Background()

	threadId := createThread(t, s, "1", "Hello", baseTime)
	other := createThread(t, s, "1", "Other", baseTime.Add(time.Second))
	replyId := createReply(t, s, "1", threadId, baseTime.Add(time.Minute))
	assert.Greater(t, replyId, threadId)

	threads, err := s.ListThreads(ctx, "1", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.PostId{threadId, other}, summaryIds(threads))
	assert.Equal(t, 1, threads[0].ReplyCount)

	_, err = s.CreatePost(ctx, domain.PostCreationData{
		Board: "1", Name: "Anonymous", Subject: "fails", Message: "m", CreatedAt: baseTime,
	}, func(id domain.PostId) (domain.Media, error) {
		return domain.Media{}, assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 3, countPosts(t, s))
}
