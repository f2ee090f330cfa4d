package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStorage runs the shared contract against any backend
func exerciseStorage(t *testing.T, s Storage) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`)))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), v)

	require.NoError(t, s.Set(ctx, "k", []byte(`{"a":2}`)))
	v, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), v)

	require.NoError(t, s.Remove(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	// Removing a missing key is not an error
	assert.NoError(t, s.Remove(ctx, "k"))
}

// ============================================
// Memory Tests
// ============================================

func TestMemory_Contract(t *testing.T) {
	exerciseStorage(t, NewMemory())
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value))
	value[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	assert.Equal(t, 1, m.Len())
}

// ============================================
// File Tests
// ============================================

func TestFile_Contract(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	exerciseStorage(t, f)
}

func TestFile_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, "device:abc:sweets_cart", []byte("payload")))

	reopened, err := NewFile(dir)
	require.NoError(t, err)
	v, err := reopened.Get(ctx, "device:abc:sweets_cart")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), v)
}

func TestFile_KeyWithSlashStaysInDir(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, f.Set(context.Background(), "../escape", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.dat"))
	assert.True(t, os.IsNotExist(err))
}

func TestFile_CancelledContext(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.Set(ctx, "k", []byte("v")), context.Canceled)
}

// ============================================
// Redis Tests
// ============================================

func setupTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, ttl), mr
}

func TestRedis_Contract(t *testing.T) {
	r, _ := setupTestRedis(t, 0)
	exerciseStorage(t, r)
}

func TestRedis_KeyFormatAndTTL(t *testing.T) {
	r, mr := setupTestRedis(t, 7*24*time.Hour)

	require.NoError(t, r.Set(context.Background(), "device:abc:sweets_cart", []byte("v")))

	assert.True(t, mr.Exists("cartsync:device:abc:sweets_cart"))
	assert.Equal(t, 7*24*time.Hour, mr.TTL("cartsync:device:abc:sweets_cart"))
}

func TestRedis_ServerDown(t *testing.T) {
	r, mr := setupTestRedis(t, 0)
	mr.Close()

	_, err := r.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "redis get failed")
}

// ============================================
// Scoped Tests
// ============================================

func TestScoped_PrefixesKeys(t *testing.T) {
	backend := NewMemory()
	ctx := context.Background()

	a := NewScoped(backend, "device-a")
	b := NewScoped(backend, "device-b")

	require.NoError(t, a.Set(ctx, "sweets_cart", []byte("a")))
	require.NoError(t, b.Set(ctx, "sweets_cart", []byte("b")))

	raw, err := backend.Get(ctx, "device:device-a:sweets_cart")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), raw)

	got, err := b.Get(ctx, "sweets_cart")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)

	require.NoError(t, a.Remove(ctx, "sweets_cart"))
	_, err = a.Get(ctx, "sweets_cart")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.Get(ctx, "sweets_cart")
	assert.NoError(t, err)
}

// ============================================
// Postgres Tests (require TEST_DATABASE_URL)
// ============================================

func TestPostgres_Contract(t *testing.T) {
	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := ConnectPostgres(connStr)
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgres(db)
	require.NoError(t, p.EnsureSchema(context.Background()))
	_, err = db.Exec("DELETE FROM cart_storage WHERE key IN ('k', 'missing')")
	require.NoError(t, err)

	exerciseStorage(t, p)
}
