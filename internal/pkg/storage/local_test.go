package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoragePutGetExists(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "deposits/2026/a.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "deposits/2026/a.json", strings.NewReader(`{"x":1}`), "application/json"))

	ok, err = s.Exists(ctx, "deposits/2026/a.json")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Get(ctx, "deposits/2026/a.json")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(body))
}

func TestLocalStorageGetMissing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "nope.json")
	assert.True(t, errors.Is(err, ErrNotFound))
}
