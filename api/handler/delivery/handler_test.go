package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seyalabs/media-hub/config"
	"github.com/seyalabs/media-hub/database/models"
	accountsrepo "github.com/seyalabs/media-hub/database/repo/accounts"
	assetsrepo "github.com/seyalabs/media-hub/database/repo/assets"
	usagerepo "github.com/seyalabs/media-hub/database/repo/usage"
	variantsrepo "github.com/seyalabs/media-hub/database/repo/variants"
	"github.com/seyalabs/media-hub/internal/codec"
	"github.com/seyalabs/media-hub/internal/transform"
	"github.com/seyalabs/media-hub/internal/usage"
	"github.com/seyalabs/media-hub/internal/variants"
	"github.com/seyalabs/media-hub/internal/worker"
	"github.com/seyalabs/media-hub/storage"
)

type stubStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *stubStore) SaveWithContext(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *stubStore) GetWithContext(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubStore) DeleteWithContext(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *stubStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *stubStore) PresignedPut(context.Context, string, string, time.Duration) (string, error) {
	return "", storage.ErrPresignNotSupported
}

func (s *stubStore) Health(context.Context) error { return nil }
func (s *stubStore) Name() string                 { return "stub" }

type stubCodec struct{}

func (stubCodec) Transform(_ context.Context, _ []byte, opts codec.Options) (*codec.Result, error) {
	return &codec.Result{
		Bytes:    []byte("rendered"),
		MimeType: codec.MimeTypeFor(opts.Format),
		Width:    opts.Width,
		Height:   opts.Height,
	}, nil
}

func (stubCodec) Name() string { return "stub" }

type handlerFixture struct {
	router  *gin.Engine
	signer  *transform.Signer
	account *models.Account
	asset   *models.Asset
}

func setupHandler(t *testing.T) *handlerFixture {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.Account{}, &models.Asset{}, &models.Variant{}, &models.UsageEvent{}))

	accounts := accountsrepo.NewAccountsRepository(db)
	assets := assetsrepo.NewAssetsRepository(db)

	account, err := accounts.Create("acme", models.PlanStarter)
	assert.NoError(t, err)

	store := &stubStore{objects: map[string][]byte{"originals/src.jpg": []byte("src")}}
	asset := &models.Asset{
		Identifier: "asset1",
		AccountID:  account.ID,
		Kind:       models.AssetKindImage,
		StorageKey: "originals/src.jpg",
		MimeType:   "image/jpeg",
		Status:     models.AssetStatusReady,
	}
	assert.NoError(t, assets.Create(asset))

	pool := worker.NewPool(2, 16)
	pool.Start()
	t.Cleanup(pool.Stop)

	meter := usage.NewMeter(usagerepo.NewUsageRepository(db), map[string]config.PlanLimits{
		models.PlanStarter: {StorageMB: 10, EgressMB: 10, TransformCount: 100},
	})
	variantCache := variants.NewCache(variantsrepo.NewVariantsRepository(db), store, nil)
	signer := transform.NewSigner(time.Hour)
	service := transform.NewService(accounts, assets, variantCache, meter, stubCodec{}, pool, signer, store, nil, transform.Limits{
		MaxDimension:   6000,
		MaxQuality:     95,
		MaxOutputBytes: 1 << 20,
		CodecTimeout:   5 * time.Second,
	})

	router := gin.New()
	handler := NewHandler(service)
	router.GET("/i/:account/:asset", handler.Deliver)

	return &handlerFixture{router: router, signer: signer, account: account, asset: asset}
}

func (f *handlerFixture) request(t *testing.T, accountID, assetID string, query url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	target := fmt.Sprintf("/i/%s/%s?%s", accountID, assetID, query.Encode())
	req, err := http.NewRequest(http.MethodGet, target, nil)
	assert.NoError(t, err)
	f.router.ServeHTTP(w, req)
	return w
}

func (f *handlerFixture) signed(params url.Values) url.Values {
	path := fmt.Sprintf("/i/%s/%s", f.account.Identifier, f.asset.Identifier)
	return f.signer.Sign(f.account.SigningSecret, path, params, time.Time{})
}

func TestDeliverOK(t *testing.T) {
	f := setupHandler(t)
	query := f.signed(url.Values{"w": {"200"}, "fm": {"webp"}})

	w := f.request(t, f.account.Identifier, f.asset.Identifier, query)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/webp", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "immutable")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "rendered", w.Body.String())

	// 第二次请求命中缓存
	w = f.request(t, f.account.Identifier, f.asset.Identifier, query)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestDeliverTamperedSignature(t *testing.T) {
	f := setupHandler(t)
	query := f.signed(url.Values{"w": {"200"}})
	query.Set("w", "500")

	w := f.request(t, f.account.Identifier, f.asset.Identifier, query)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var body struct {
		Status string `json:"status"`
		Code   string `json:"code"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "forbidden", body.Code)
}

func TestDeliverMissingCredentials(t *testing.T) {
	f := setupHandler(t)

	w := f.request(t, f.account.Identifier, f.asset.Identifier, url.Values{"w": {"200"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeliverUnknownParameter(t *testing.T) {
	f := setupHandler(t)
	query := f.signed(url.Values{"rotate": {"90"}})

	w := f.request(t, f.account.Identifier, f.asset.Identifier, query)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Code string `json:"code"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_parameter", body.Code)
}

func TestDeliverUnknownAsset(t *testing.T) {
	f := setupHandler(t)
	path := fmt.Sprintf("/i/%s/ghost", f.account.Identifier)
	query := f.signer.Sign(f.account.SigningSecret, path, url.Values{"w": {"200"}}, time.Time{})

	w := f.request(t, f.account.Identifier, "ghost", query)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
