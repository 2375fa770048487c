// internal/adapters/storage/local_test.go
package storage_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/inventory-bot/internal/adapters/storage"
	"github.com/ammerola/inventory-bot/test/helpers"
)

func newLocal(t *testing.T) *storage.LocalStorage {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir(), helpers.TestLogger())
	require.NoError(t, err)
	return s
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	location, err := s.Upload(ctx, "backups/a.json", strings.NewReader(`{"admins":[]}`), "application/json")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(location, "a.json"))

	data, err := s.Download(ctx, "backups/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"admins":[]}`, string(data))

	_, err = s.Upload(ctx, "backups/a.json", strings.NewReader("v2"), "")
	require.NoError(t, err)
	data, err = s.Download(ctx, "backups/a.json")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestLocalStorage_InvalidKeys(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape.json", "/etc/passwd", "."} {
		t.Run(key, func(t *testing.T) {
			_, err := s.Upload(ctx, key, strings.NewReader("x"), "")
			assert.Error(t, err)
		})
	}
}

func TestLocalStorage_ListAndDelete(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	for _, key := range []string{"backups/3.json", "backups/1.json", "reports/r.xlsx", "backups/2.json"} {
		_, err := s.Upload(ctx, key, strings.NewReader(key), "")
		require.NoError(t, err)
	}

	keys, err := s.List(ctx, "backups/")
	require.NoError(t, err)
	assert.Equal(t, []string{"backups/1.json", "backups/2.json", "backups/3.json"}, keys)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, s.DeleteMultiple(ctx, []string{"backups/1.json", "backups/missing.json"}))
	keys, err = s.List(ctx, "backups/")
	require.NoError(t, err)
	assert.Equal(t, []string{"backups/2.json", "backups/3.json"}, keys)
}

func TestLocalStorage_PresignedURL(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	_, err := s.GetPresignedURL(ctx, "reports/none.xlsx", time.Hour)
	assert.Error(t, err)

	_, err = s.Upload(ctx, "reports/r.xlsx", strings.NewReader("x"), "")
	require.NoError(t, err)

	link, err := s.GetPresignedURL(ctx, "reports/r.xlsx", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "file://"))
	assert.True(t, strings.HasSuffix(link, "reports/r.xlsx"))
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	s := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Upload(ctx, "a.json", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}
