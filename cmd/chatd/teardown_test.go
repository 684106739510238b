package main

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatd/internal/server"
)

func TestTeardownRunsEveryStepInReverse(t *testing.T) {
	td := newTeardown(zap.NewNop())

	var order []string
	step := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}
	td.add("postgres", step("postgres", nil))
	td.add("redis", step("redis", errors.New("redis gone")))
	td.add("hub", step("hub", nil))
	td.add("http", step("http", errors.New("listener stuck")))

	err := td.run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"http", "hub", "redis", "postgres"}, order)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "http: listener stuck")
	assert.Contains(t, err.Error(), "redis: redis gone")

	// A second run has nothing left to release.
	order = nil
	assert.NoError(t, td.run(context.Background()))
	assert.Empty(t, order)
}

func TestServeFailsWhenRedisIsUnreachable(t *testing.T) {
	cfg := server.NewConfig()
	cfg.JWTSecret = "dev-secret"
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Log.Level = "error"

	err := serve(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
