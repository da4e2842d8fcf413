package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-bed-allocation/internal/config"
)

func stores(t *testing.T) map[string]Store {
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{"fs": fs, "memory": NewMemory(), "s3": newMockS3(t)}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := NewKey("cnic front.png")
			info, err := s.Put(ctx, key, strings.NewReader("scan-bytes"), "image/png")
			require.NoError(t, err)
			assert.Equal(t, int64(10), info.Size)

			got, rc, err := s.Get(ctx, key)
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, "scan-bytes", string(data))
			assert.Equal(t, int64(10), got.Size)
			assert.Equal(t, "image/png", got.ContentType)

			require.NoError(t, s.Delete(ctx, key))
			_, _, err = s.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestNewKey(t *testing.T) {
	k := NewKey("../../etc/My Photo!.jpg")
	parts := strings.SplitN(k, "_", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 32)
	assert.Equal(t, "My_Photo_.jpg", parts[1])
	assert.NotEqual(t, k, NewKey("../../etc/My Photo!.jpg"))
	assert.True(t, strings.HasSuffix(NewKey(""), "_upload"))
	_, err := sanitizeKey(k)
	assert.NoError(t, err)
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	_, err = fs.Put(context.Background(), "../escape", bytes.NewReader(nil), "")
	assert.Error(t, err)
	_, err = fs.Put(context.Background(), "/abs", bytes.NewReader(nil), "")
	assert.Error(t, err)
	assert.ErrorIs(t, fs.Delete(context.Background(), "missing"), ErrNotFound)
}

func TestPresignOnlyOnS3(t *testing.T) {
	ctx := context.Background()
	_, err := NewMemory().PresignURL(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrUnsupported)

	u, err := newMockS3(t).PresignURL(ctx, "abc_photo.png", 10*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "/hostel-docs/abc_photo.png")
	assert.Contains(t, u, "X-Amz-Expires=600")
}

func TestDeleteAllIgnoresMissing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, err := m.Put(ctx, "a", strings.NewReader("1"), "")
	require.NoError(t, err)
	_, err = m.Put(ctx, "b", strings.NewReader("2"), "")
	require.NoError(t, err)
	require.NoError(t, DeleteAll(ctx, m, []string{"a", "gone", "b"}))
	assert.Zero(t, m.Len())
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.BlobConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	s, err = Open(ctx, config.BlobConfig{Driver: "fs", FSRoot: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	_, err = Open(ctx, config.BlobConfig{Driver: "s3"})
	assert.Error(t, err, "bucket is required")

	_, err = Open(ctx, config.BlobConfig{Driver: "ftp"})
	assert.Error(t, err)
}
