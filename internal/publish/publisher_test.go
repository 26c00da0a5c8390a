package publish

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sczmerge/internal/config"
)

// memoryStore records uploads instead of talking to a server
type memoryStore struct {
	mu        sync.Mutex
	bucketErr error
	failKeys  map[string]error
	objects   map[string]string // key -> content type
}

func newMemoryStore() *memoryStore {
	return &memoryStore{failKeys: map[string]error{}, objects: map[string]string{}}
}

func (m *memoryStore) EnsureBucket(context.Context, string) error {
	return m.bucketErr
}

func (m *memoryStore) UploadFile(_ context.Context, _, key, _, contentType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failKeys[key]; err != nil {
		return 0, err
	}
	m.objects[key] = contentType
	return int64(len(key)), nil
}

func TestPublisher_ObjectKey(t *testing.T) {
	tests := []struct {
		prefix   string
		expected string
	}{
		{"", "dados_unificados.csv"},
		{"scz", "scz/dados_unificados.csv"},
		{"/scz/2024/", "scz/2024/dados_unificados.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			p := NewPublisher(newMemoryStore(), "bucket", tt.prefix, nil)
			assert.Equal(t, tt.expected, p.ObjectKey("/data/out/dados_unificados.csv"))
		})
	}
}

func TestPublisher_Publish(t *testing.T) {
	store := newMemoryStore()
	uploadErr := errors.New("connection reset")
	store.failKeys["scz/dados_unificados.parquet"] = uploadErr

	p := NewPublisher(store, "surveillance", "scz", nil)
	uploads := p.Publish(context.Background(), []string{
		"/out/dados_unificados.csv",
		"/out/dados_unificados.parquet",
		"/out/dados_unificados.xlsx",
	})

	require.Len(t, uploads, 3)
	assert.NoError(t, uploads[0].Err)
	assert.Equal(t, "scz/dados_unificados.csv", uploads[0].Key)
	assert.Positive(t, uploads[0].Size)
	assert.ErrorIs(t, uploads[1].Err, uploadErr)
	assert.NoError(t, uploads[2].Err)

	assert.Equal(t, "text/csv; charset=utf-8", store.objects["scz/dados_unificados.csv"])
	assert.Contains(t, store.objects["scz/dados_unificados.xlsx"], "spreadsheetml")
	assert.NotContains(t, store.objects, "scz/dados_unificados.parquet")
}

func TestPublisher_BucketUnavailable(t *testing.T) {
	store := newMemoryStore()
	store.bucketErr = errors.New("access denied")

	uploads := NewPublisher(store, "surveillance", "", nil).Publish(context.Background(), []string{"/out/a.csv", "/out/b.parquet"})

	require.Len(t, uploads, 2)
	for _, u := range uploads {
		assert.ErrorIs(t, u.Err, store.bucketErr)
	}
	assert.Empty(t, store.objects)
}

func TestPublisher_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uploads := NewPublisher(newMemoryStore(), "b", "", nil).Publish(ctx, []string{"/out/a.csv"})
	assert.ErrorIs(t, uploads[0].Err, context.Canceled)
}

func TestNewMinioStore(t *testing.T) {
	t.Run("requires endpoint", func(t *testing.T) {
		_, err := NewMinioStore(config.PublishConfig{})
		assert.Error(t, err)
	})

	t.Run("accepts url endpoint", func(t *testing.T) {
		store, err := NewMinioStore(config.PublishConfig{
			Endpoint:  "https://objects.example.org:9000",
			AccessKey: "key",
			SecretKey: "secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "objects.example.org:9000", store.client.EndpointURL().Host)
		assert.Equal(t, "https", store.client.EndpointURL().Scheme)
	})
}
