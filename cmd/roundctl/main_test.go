package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/crypto"
	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

func TestRealMain_Usage(t *testing.T) {
	assert.Equal(t, 2, realMain(nil))
	assert.Equal(t, 2, realMain([]string{"bogus"}))
}

func TestRequireYes(t *testing.T) {
	assert.Error(t, requireYes(false, "drain a round vault"))
	assert.NoError(t, requireYes(true, "drain a round vault"))
}

func TestRenderRound(t *testing.T) {
	end := time.Date(2025, 3, 1, 12, 3, 0, 0, time.UTC)
	r := domain.Round{
		ID:          7,
		LockedPrice: 13196,
		StartTime:   end.Add(-3 * time.Minute),
		EndTime:     end,
		UpPool:      1_500_000,
		DownPool:    250_000,
	}

	var buf bytes.Buffer
	renderRound(&buf, r, end.Add(-time.Minute))

	out := buf.String()
	assert.Contains(t, out, "131.96")
	assert.Contains(t, out, "1.5")
	assert.Contains(t, out, "0.25")
	assert.Contains(t, out, "1m0s")
	assert.Contains(t, out, "pending")
}

func TestEncryptKey_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	keyfile := filepath.Join(dir, "key.hex")
	out := filepath.Join(dir, "key.enc")
	hexKey := "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	require.NoError(t, os.WriteFile(keyfile, []byte(hexKey+"\n"), 0o600))
	t.Setenv("KEEPER_WALLET_KEY_PASSWORD", "hunter2")

	var buf bytes.Buffer
	e := &env{out: &buf}
	err := runEncryptKey(context.Background(), e, []string{"-chain", "evm", "-keyfile", keyfile, "-out", out})
	require.NoError(t, err)

	blob, err := os.ReadFile(out)
	require.NoError(t, err)
	got, err := crypto.DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	want, err := crypto.ParseHexKey(hexKey)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEncryptKey_RequiresPaths(t *testing.T) {
	e := &env{out: &bytes.Buffer{}}
	err := runEncryptKey(context.Background(), e, []string{"-chain", "evm"})
	assert.ErrorIs(t, err, errUsage)
}
