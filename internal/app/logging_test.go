package app_test

import (
	"testing"

	"github.com/palantir/product-attribute-enrichment/internal/app"
	"github.com/palantir/product-attribute-enrichment/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	logger, err := app.NewLogger(config.LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = app.NewLogger(config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))

	_, err = app.NewLogger(config.LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}
