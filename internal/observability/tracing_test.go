package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursechat/internal/log"
)

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), Config{}, log.NewNop())

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_CustomEndpoint(t *testing.T) {
	cfg := Config{
		Endpoint:    "localhost:4318",
		Environment: "test",
		ServiceName: "coursechat-test",
	}

	shutdown, err := SetupTracing(context.Background(), cfg, log.NewNop())

	// Exporter creation succeeds even when no collector is listening;
	// spans fail to export silently.
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_NilLogger(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), Config{}, nil)

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
