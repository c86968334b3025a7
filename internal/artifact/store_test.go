package artifact

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.Get(ctx, "telecom_model.churnkit")
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err := s.Exists(ctx, "telecom_model.churnkit")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "telecom_model.churnkit", []byte("v1")))
	require.NoError(t, s.Put(ctx, "telecom_model.churnkit", []byte("v2")))

	got, err := s.Get(ctx, "telecom_model.churnkit")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
	ok, err = s.Exists(ctx, "telecom_model.churnkit")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "telecom_model.churnkit", entries[0].Name())
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"", "..", "../escape", "a/b", `a\b`} {
		assert.Error(t, ValidateKey(key), key)
	}
	assert.NoError(t, ValidateKey("model_registry.json"))

	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Put(context.Background(), "../x", nil))
}

func TestFileStore_CanceledContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, "k", []byte("x")), context.Canceled)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("payload")
	require.NoError(t, s.Put(ctx, "k", data))
	data[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte(`{"feature":"tenure","importance":0.25}`), 200)
	packed, err := Compress(data)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(data))

	unpacked, err := Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, data, unpacked)

	_, err = Decompress([]byte("not zstd"))
	assert.Error(t, err)
}

type fakeBlobs struct {
	blobs      map[string][]byte
	containers map[string]bool
	failWith   error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: map[string][]byte{}, containers: map[string]bool{}}
}

func (f *fakeBlobs) upload(_ context.Context, container, name string, data []byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.blobs[container+"|"+name] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBlobs) download(_ context.Context, container, name string) ([]byte, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	data, ok := f.blobs[container+"|"+name]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (f *fakeBlobs) exists(_ context.Context, container, name string) (bool, error) {
	_, ok := f.blobs[container+"|"+name]
	return ok, nil
}

func (f *fakeBlobs) createContainer(_ context.Context, container string) error {
	f.containers[container] = true
	return nil
}

func TestBlobStore(t *testing.T) {
	ctx := context.Background()
	api := newFakeBlobs()
	s := newBlobStore(api, BlobConfig{Container: "models", Prefix: "churn"})

	require.NoError(t, s.EnsureContainer(ctx))
	assert.True(t, api.containers["models"])

	_, err := s.Get(ctx, "a.churnkit")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "a.churnkit", []byte("blob")))
	assert.Contains(t, api.blobs, "models|churn/a.churnkit")

	got, err := s.Get(ctx, "a.churnkit")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), got)

	ok, err := s.Exists(ctx, "a.churnkit")
	require.NoError(t, err)
	assert.True(t, ok)

	api.failWith = errors.New("throttled")
	err = s.Put(ctx, "a.churnkit", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewBlobStore_RequiresLocation(t *testing.T) {
	_, err := NewBlobStore(BlobConfig{})
	assert.Error(t, err)
	_, err = NewBlobStore(BlobConfig{Container: "models"})
	assert.Error(t, err)
}
