package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithPort(9440),
		WithDatabase("pricecast"),
		WithCredentials("reader", "secret"),
		WithMaxExecutionTime(30 * time.Second),
	} {
		opt(cfg)
	}

	o := options(cfg)
	assert.Equal(t, []string{"ch.local:9440"}, o.Addr)
	assert.Equal(t, "pricecast", o.Auth.Database)
	assert.Equal(t, "reader", o.Auth.Username)
	assert.Equal(t, ch.Native, o.Protocol)
	require.NotNil(t, o.Compression)
	assert.Equal(t, ch.CompressionLZ4, o.Compression.Method)
	assert.Equal(t, 30, o.Settings["max_execution_time"])
}

func TestOptionsHTTPWithoutCompression(t *testing.T) {
	cfg := defaultConfig()
	WithHost("localhost")(cfg)
	WithHTTP(true)(cfg)
	WithCompression(false)(cfg)

	o := options(cfg)
	assert.Equal(t, ch.HTTP, o.Protocol)
	assert.Nil(t, o.Compression)
	assert.NotContains(t, o.Settings, "max_execution_time")
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
