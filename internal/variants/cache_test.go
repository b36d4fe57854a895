package variants

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seyalabs/media-hub/database/models"
	variantsrepo "github.com/seyalabs/media-hub/database/repo/variants"
	"github.com/seyalabs/media-hub/storage"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) SaveWithContext(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStore) GetWithContext(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) DeleteWithContext(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStore) PresignedPut(context.Context, string, string, time.Duration) (string, error) {
	return "", storage.ErrPresignNotSupported
}

func (s *fakeStore) Health(context.Context) error { return nil }

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func setupCache(t *testing.T) (*Cache, *fakeStore, *gorm.DB) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.Variant{}))

	store := newFakeStore()
	cache := NewCache(variantsrepo.NewVariantsRepository(db), store, nil)
	return cache, store, db
}

func TestLookupMiss(t *testing.T) {
	cache, _, _ := setupCache(t)

	_, err := cache.Lookup(context.Background(), 1, "aaa")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMaterializeThenLookup(t *testing.T) {
	cache, store, _ := setupCache(t)
	ctx := context.Background()
	data := []byte("webp-bytes")

	hit, err := cache.MaterializeAndStore(ctx, &models.Variant{
		AssetID:    1,
		ParamsHash: "aaa",
		MimeType:   "image/webp",
		Width:      200,
		Height:     100,
	}, "w=200", data)
	assert.NoError(t, err)
	assert.Equal(t, data, hit.Bytes)
	assert.Equal(t, int64(len(data)), hit.Variant.FileSize)
	assert.True(t, strings.HasPrefix(hit.Variant.StorageKey, "variants/"))
	assert.True(t, strings.HasSuffix(hit.Variant.StorageKey, ".webp"))
	assert.Equal(t, 1, store.count())

	got, err := cache.Lookup(ctx, 1, "aaa")
	assert.NoError(t, err)
	assert.Equal(t, data, got.Bytes)
	assert.Equal(t, hit.Variant.ID, got.Variant.ID)
}

func TestMaterializeDuplicateCleansRedundantBlob(t *testing.T) {
	cache, store, _ := setupCache(t)
	ctx := context.Background()

	first, err := cache.MaterializeAndStore(ctx, &models.Variant{
		AssetID: 1, ParamsHash: "aaa", MimeType: "image/webp",
	}, "w=200", []byte("first"))
	assert.NoError(t, err)

	second, err := cache.MaterializeAndStore(ctx, &models.Variant{
		AssetID: 1, ParamsHash: "aaa", MimeType: "image/webp",
	}, "w=200", []byte("second"))
	assert.NoError(t, err)

	// 后到者的字节被丢弃,先到者胜出
	assert.Equal(t, first.Variant.ID, second.Variant.ID)
	assert.Equal(t, []byte("first"), second.Bytes)
	assert.Equal(t, 1, store.count())
}

func TestLookupMissingBlobTreatedAsMiss(t *testing.T) {
	cache, store, _ := setupCache(t)
	ctx := context.Background()

	hit, err := cache.MaterializeAndStore(ctx, &models.Variant{
		AssetID: 1, ParamsHash: "aaa", MimeType: "image/webp",
	}, "w=200", []byte("data"))
	assert.NoError(t, err)

	assert.NoError(t, store.DeleteWithContext(ctx, hit.Variant.StorageKey))

	_, err = cache.Lookup(ctx, 1, "aaa")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMaterializeRepairsLostBlob(t *testing.T) {
	cache, store, _ := setupCache(t)
	ctx := context.Background()

	first, err := cache.MaterializeAndStore(ctx, &models.Variant{
		AssetID: 1, ParamsHash: "aaa", MimeType: "image/webp",
	}, "w=200", []byte("original"))
	assert.NoError(t, err)

	// 字节丢失后重新物化必须修复记录,而不是丢弃新字节
	assert.NoError(t, store.DeleteWithContext(ctx, first.Variant.StorageKey))

	repaired, err := cache.MaterializeAndStore(ctx, &models.Variant{
		AssetID: 1, ParamsHash: "aaa", MimeType: "image/webp",
	}, "w=200", []byte("regenerated"))
	assert.NoError(t, err)
	assert.Equal(t, first.Variant.ID, repaired.Variant.ID)
	assert.Equal(t, []byte("regenerated"), repaired.Bytes)
	assert.NotEqual(t, first.Variant.StorageKey, repaired.Variant.StorageKey)
	assert.Equal(t, int64(len("regenerated")), repaired.Variant.FileSize)
	assert.Equal(t, 1, store.count())

	got, err := cache.Lookup(ctx, 1, "aaa")
	assert.NoError(t, err)
	assert.Equal(t, []byte("regenerated"), got.Bytes)
}

func TestPurge(t *testing.T) {
	cache, store, db := setupCache(t)
	ctx := context.Background()

	_, err := cache.MaterializeAndStore(ctx, &models.Variant{AssetID: 1, ParamsHash: "aaa", MimeType: "image/webp"}, "w=200", []byte("a"))
	assert.NoError(t, err)
	_, err = cache.MaterializeAndStore(ctx, &models.Variant{AssetID: 1, ParamsHash: "bbb", MimeType: "image/png"}, "w=300", []byte("b"))
	assert.NoError(t, err)
	_, err = cache.MaterializeAndStore(ctx, &models.Variant{AssetID: 2, ParamsHash: "ccc", MimeType: "image/webp"}, "w=400", []byte("c"))
	assert.NoError(t, err)

	assert.NoError(t, cache.Purge(ctx, 1))

	var count int64
	assert.NoError(t, db.Model(&models.Variant{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, store.count())
}
