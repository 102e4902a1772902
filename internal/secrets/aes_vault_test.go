package secrets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/schema"
)

type memStore struct {
	values map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string][]byte)}
}

func (s *memStore) StoreSecret(_ context.Context, key string, value []byte) error {
	s.values[key] = value
	return nil
}

func (s *memStore) GetSecret(_ context.Context, key string) ([]byte, error) {
	value, ok := s.values[key]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "secret %q not found", key)
	}
	return value, nil
}

func (s *memStore) DeleteSecret(_ context.Context, key string) error {
	delete(s.values, key)
	return nil
}

func (s *memStore) ListSecrets(_ context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys, nil
}

func testVault(t *testing.T, store SecretStore) *AESVault {
	t.Helper()
	vault, err := NewAESVault(store, Config{
		Passphrase: "test-passphrase",
		Salt:       []byte("0123456789abcdef"),
		Iterations: 1000,
	})
	require.NoError(t, err)
	return vault
}

func TestVaultRoundTrip(t *testing.T) {
	store := newMemStore()
	vault := testVault(t, store)
	ctx := context.Background()

	require.NoError(t, vault.Store(ctx, "anthropic_api_key", []byte("sk-ant-test")))

	got, err := vault.Resolve(ctx, "anthropic_api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", string(got))
}

func TestVaultEncryptsAtRest(t *testing.T) {
	store := newMemStore()
	vault := testVault(t, store)
	ctx := context.Background()

	require.NoError(t, vault.Store(ctx, "token", []byte("hunter2")))

	raw := store.values["token"]
	assert.NotContains(t, string(raw), "hunter2")
	assert.Greater(t, len(raw), len("hunter2"))
}

func TestVaultWrongPassphrase(t *testing.T) {
	store := newMemStore()
	vault := testVault(t, store)
	ctx := context.Background()

	require.NoError(t, vault.Store(ctx, "token", []byte("hunter2")))

	other, err := NewAESVault(store, Config{
		Passphrase: "different",
		Salt:       []byte("0123456789abcdef"),
		Iterations: 1000,
	})
	require.NoError(t, err)

	_, err = other.Resolve(ctx, "token")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeVault))
}

func TestVaultMissingKey(t *testing.T) {
	vault := testVault(t, newMemStore())

	_, err := vault.Resolve(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestVaultDeleteAndList(t *testing.T) {
	store := newMemStore()
	vault := testVault(t, store)
	ctx := context.Background()

	require.NoError(t, vault.Store(ctx, "a", []byte("1")))
	require.NoError(t, vault.Store(ctx, "b", []byte("2")))

	keys, err := vault.List(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, vault.Delete(ctx, "a"))
	keys, err = vault.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestVaultConfigValidation(t *testing.T) {
	_, err := NewAESVault(newMemStore(), Config{Salt: []byte("0123456789abcdef")})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeVault))

	_, err = NewAESVault(newMemStore(), Config{Passphrase: "p"})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeVault))
}

func TestLoadOrCreateSalt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.salt")

	first, err := LoadOrCreateSalt(path)
	require.NoError(t, err)
	require.Len(t, first, saltSize)

	second, err := LoadOrCreateSalt(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
