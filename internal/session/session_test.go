package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 44) // base64 of 32 bytes
}

func TestValidateToken(t *testing.T) {
	assert.True(t, ValidateToken("abc", "abc"))
	assert.False(t, ValidateToken("abc", "abd"))
	assert.False(t, ValidateToken("", ""))
	assert.False(t, ValidateToken("abc", ""))
}

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore(time.Hour, 100)
	sess, err := store.Create()
	require.NoError(t, err)

	_, err = uuid.Parse(sess.Id)
	assert.NoError(t, err, "session ids are uuids")
	assert.NotEmpty(t, sess.CSRFToken)

	got, ok := store.Get(sess.Id)
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestStoreExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewStore(time.Hour, 100)
	store.now = func() time.Time { return now }

	sess, err := store.Create()
	require.NoError(t, err)
	other, err := store.Create()
	require.NoError(t, err)

	now = now.Add(50 * time.Minute)
	_, ok := store.Get(sess.Id)
	require.True(t, ok, "access refreshes the session")

	now = now.Add(30 * time.Minute)
	_, ok = store.Get(sess.Id)
	assert.True(t, ok)

	assert.Equal(t, 1, store.Cleanup(), "only the idle session expired")
	_, ok = store.Get(other.Id)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestStoreCapEvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewStore(time.Hour, 3)
	store.now = func() time.Time { return now }

	var ids []string
	for i := 0; i < 3; i++ {
		sess, err := store.Create()
		require.NoError(t, err)
		ids = append(ids, sess.Id)
		now = now.Add(time.Second)
	}

	// the oldest session is used again, the second one becomes the idlest
	_, ok := store.Get(ids[0])
	require.True(t, ok)

	for i := 0; i < 100; i++ {
		_, err := store.Create()
		require.NoError(t, err)
	}

	assert.Equal(t, 3, store.Len(), "a flood of new sessions never grows the store past its cap")
	_, ok = store.Get(ids[1])
	assert.False(t, ok)
}

func TestStoreCleanupStopsAtLiveSession(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewStore(time.Hour, 0)
	store.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		_, err := store.Create()
		require.NoError(t, err)
	}
	now = now.Add(2 * time.Hour)
	live, err := store.Create()
	require.NoError(t, err)

	assert.Equal(t, 5, store.Cleanup())
	_, ok := store.Get(live.Id)
	assert.True(t, ok)
	assert.Equal(t, 1, store.Len())
}
