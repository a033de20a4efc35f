//go:build integration

package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedis(t *testing.T) {
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, c)

	endpoint, err := c.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedis(client, time.Minute)
	require.NoError(t, s.Ping(ctx))

	resp, err := s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, resp)

	_, err = s.Begin(ctx, "k")
	require.ErrorIs(t, err, ErrInProgress)

	require.NoError(t, s.Complete(ctx, "k", Response{Status: 201, Body: []byte(`{"ok":true}`), Fingerprint: "f1"}))
	resp, err = s.Begin(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, []byte(`{"ok":true}`), resp.Body)
	assert.True(t, resp.Matches("f1"))

	require.NoError(t, s.Release(ctx, "k"))
	resp, err = s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, resp)
}
