package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithTransactionTagsEntries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	WithTransaction(zap.New(core), "5igAbc").Info("transaction sent")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "5igAbc", fields["signature"])
	assert.Contains(t, fields, "tx_time")
}

func TestWithOperationCorrelatesEntries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := zap.New(core)

	WithOperation(l, "auto-buy").Info("one")
	WithOperation(l, "auto-buy").Info("two")

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0].ContextMap()
	second := logs.All()[1].ContextMap()
	assert.Equal(t, "auto-buy", first["operation"])
	assert.NotEqual(t, first["correlation_id"], second["correlation_id"],
		"each operation gets its own correlation id")
}

func TestWithComponentTagsEntries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	WithComponent(zap.New(core), "bot").Info("ready")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "bot", logs.All()[0].ContextMap()["component"])
}
