package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

func testKey(n int) []byte {
	return bytes.Repeat([]byte{0x42}, n)
}

func TestEncryptDecryptKey(t *testing.T) {
	for _, n := range []int{32, 64} {
		blob, err := EncryptKey(testKey(n), "pw")
		require.NoError(t, err)

		got, err := DecryptKey(blob, "pw")
		require.NoError(t, err)
		assert.Equal(t, testKey(n), got)

		_, err = DecryptKey(blob, "wrong")
		assert.Error(t, err)
	}
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKey(32), "")
	assert.Error(t, err)
	_, err = EncryptKey(testKey(20), "pw")
	assert.Error(t, err)
}

func TestLoadKeyOrder(t *testing.T) {
	dir := t.TempDir()
	keyfile := filepath.Join(dir, "key.txt")
	require.NoError(t, os.WriteFile(keyfile, []byte("0x"+strings.Repeat("11", 32)+"\n"), 0o600))

	blob, err := EncryptKey(testKey(32), "pw")
	require.NoError(t, err)
	encPath := filepath.Join(dir, "key.enc.json")
	require.NoError(t, os.WriteFile(encPath, blob, 0o600))

	key, err := LoadKey(KeyConfig{Secret: strings.Repeat("22", 32), Keyfile: keyfile}, ParseHexKey)
	require.NoError(t, err)
	assert.Equal(t, byte(0x22), key[0])

	key, err = LoadKey(KeyConfig{Keyfile: keyfile, EncryptedKeyPath: encPath}, ParseHexKey)
	require.NoError(t, err)
	assert.Equal(t, byte(0x11), key[0])

	key, err = LoadKey(KeyConfig{EncryptedKeyPath: encPath, KeyPassword: "pw"}, ParseHexKey)
	require.NoError(t, err)
	assert.Equal(t, testKey(32), key)
}

func TestLoadKeyErrorsAreConfiguration(t *testing.T) {
	cases := []KeyConfig{
		{},
		{Secret: "not-hex"},
		{Keyfile: filepath.Join(t.TempDir(), "missing")},
		{EncryptedKeyPath: filepath.Join(t.TempDir(), "missing"), KeyPassword: "pw"},
	}
	for _, cfg := range cases {
		_, err := LoadKey(cfg, ParseHexKey)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	}
}
