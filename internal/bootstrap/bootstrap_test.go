package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherlingo/featherlingo-api/config"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/persistence/postgres"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

func TestConnectPostgres_InvalidURLFailsWithoutRetry(t *testing.T) {
	started := time.Now()

	conn, err := ConnectPostgres(context.Background(), config.DatabaseConfig{URL: "postgres://%zz"}, logger.Nop())

	require.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, postgres.ErrInvalidConfig)
	// первая пауза StartupRetrier - 250мс
	assert.Less(t, time.Since(started), 200*time.Millisecond)
}
