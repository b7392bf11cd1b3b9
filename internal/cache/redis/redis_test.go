package redis

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "keeper:tick:Prog1111", TickLockKey("Prog1111"))
	assert.Equal(t, "lock:keeper:tick:Prog1111", lockKey(TickLockKey("Prog1111")))
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("keeper:*"))
	assert.False(t, hasPattern("keeper:tick"))
}

func TestStreamPayload(t *testing.T) {
	p, ok := streamPayload(map[string]interface{}{"payload": "{}"})
	assert.True(t, ok)
	assert.Equal(t, []byte("{}"), p)

	_, ok = streamPayload(map[string]interface{}{"other": 1})
	assert.False(t, ok)
}

func TestOptions(t *testing.T) {
	opts := options(ClientConfig{Addr: "cache:6379", DB: 2, PoolSize: 4, TLSEnabled: true})
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, clientName, opts.ClientName)
	if assert.NotNil(t, opts.TLSConfig) {
		assert.Equal(t, uint16(tls.VersionTLS12), opts.TLSConfig.MinVersion)
	}

	assert.Nil(t, options(ClientConfig{Addr: "cache:6379"}).TLSConfig)
}
