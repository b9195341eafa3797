package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/cart"
	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	products map[int64]models.Product
	images   map[int64][]models.ProductImage
}

func (f *fakeCatalog) GetCategories(context.Context) ([]models.Category, error) {
	return []models.Category{{ID: 1, Name: "Yerba", IsActive: true}}, nil
}

func (f *fakeCatalog) GetCategoryByID(_ context.Context, id int64) (*models.Category, error) {
	if id != 1 {
		return nil, store.ErrNotFound
	}
	return &models.Category{ID: 1, Name: "Yerba", IsActive: true}, nil
}

func (f *fakeCatalog) GetCategoryProducts(context.Context, int64) ([]models.Product, error) {
	return f.GetProducts(context.Background())
}

func (f *fakeCatalog) GetProducts(context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalog) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (f *fakeCatalog) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SearchProducts(_ context.Context, term string) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetProductImages(_ context.Context, productID int64) ([]models.ProductImage, error) {
	return f.images[productID], nil
}

func (f *fakeCatalog) SetPrimaryImage(_ context.Context, productID, imageID int64) error {
	found := false
	for i := range f.images[productID] {
		f.images[productID][i].IsPrimary = f.images[productID][i].ID == imageID
		found = found || f.images[productID][i].IsPrimary
	}
	if !found {
		return store.ErrNotFound
	}
	return nil
}

type fakeSessions struct {
	mu    sync.Mutex
	carts map[string]string
}

func (f *fakeSessions) SaveCart(_ context.Context, sessionID, cartJSON string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[sessionID] = cartJSON
	return nil
}

func (f *fakeSessions) LoadCart(_ context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carts[sessionID], nil
}

func (f *fakeSessions) DeleteCart(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, sessionID)
	return nil
}

type fakeProfiles struct{}

func (fakeProfiles) GetProfileByUserID(context.Context, int64) (*models.Profile, error) {
	return nil, store.ErrNotFound
}
func (fakeProfiles) SaveProfileCart(context.Context, int64, string) error  { return nil }
func (fakeProfiles) ClearProfileCart(context.Context, int64) error         { return nil }

type fakeGateway struct {
	payments map[string]*gateway.Payment
}

func (f *fakeGateway) CreatePreference(context.Context, *gateway.PreferenceRequest) (*gateway.Preference, error) {
	return &gateway.Preference{ID: "pref-1", InitPoint: "https://gateway.test/pref-1"}, nil
}

func (f *fakeGateway) GetPayment(_ context.Context, id string) (*gateway.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, errors.New("payment not found")
	}
	return p, nil
}

type fakeNotifications struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeNotifications) MarkNotificationProcessed(_ context.Context, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[paymentID] {
		return false, nil
	}
	f.seen[paymentID] = true
	return true, nil
}

func (f *fakeNotifications) SetNotificationStatus(context.Context, string, string) error {
	return nil
}

type fakeVisitStore struct {
	mu     sync.Mutex
	visits []*models.Visit
}

func (f *fakeVisitStore) InsertVisit(_ context.Context, visit *models.Visit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits = append(f.visits, visit)
	return nil
}

func (f *fakeVisitStore) UpsertVisitSummary(context.Context, time.Time, bool, bool) error { return nil }
func (f *fakeVisitStore) RefreshUniqueVisitors(context.Context, time.Time) error         { return nil }
func (f *fakeVisitStore) GetVisitSummary(context.Context, time.Time) (*models.VisitSummary, error) {
	return &models.VisitSummary{}, nil
}

func (f *fakeVisitStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visits)
}

func testRouter(t *testing.T) (*gin.Engine, *fakeVisitStore, *fakeNotifications) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := &fakeCatalog{
		products: map[int64]models.Product{
			7: {ID: 7, Name: "Mate Imperial", Price: 2500, Stock: 10, IsAvailable: true},
			8: {ID: 8, Name: "Bombilla", Price: 1000, IsSale: true, SalePrice: 800, Stock: 5, IsAvailable: true},
		},
		images: map[int64][]models.ProductImage{
			7: {
				{ID: 31, ProductID: 7, IsPrimary: true},
				{ID: 32, ProductID: 7},
			},
		},
	}
	sessions := &fakeSessions{carts: map[string]string{}}
	carts := cart.NewManager(sessions, fakeProfiles{}, catalog)

	notifications := &fakeNotifications{seen: map[string]bool{}}
	gw := &fakeGateway{payments: map[string]*gateway.Payment{
		"12345": {ID: "12345", Status: models.PaymentStatusApproved, ExternalReference: "c-1", Amount: 5000},
	}}
	payments := service.NewPaymentService(gw, notifications, nil, nil, nil,
		"https://shop.example.com", "")

	visitStore := &fakeVisitStore{}
	visits := service.NewVisitService(visitStore)

	router := gin.New()
	handler := NewHandler(catalog, carts, nil, nil, payments, visits)
	handler.SetupRoutes(router)
	return router, visitStore, notifications
}

func doJSON(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListProducts(t *testing.T) {
	router, _, _ := testRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Products []models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Products, 2)

	w = doJSON(router, http.MethodGet, "/api/v1/products?q=bombilla", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Bombilla", resp.Products[0].Name)
}

func TestCartFlow(t *testing.T) {
	router, _, _ := testRouter(t)
	session := map[string]string{"X-Session-ID": "sess-1"}

	// Adding requires a session.
	w := doJSON(router, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":7,"quantity":2}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":7,"quantity":2}`, session)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":8,"quantity":1}`, session)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Lines []cart.Line `json:"lines"`
		Total int64       `json:"total"`
		Count int         `json:"count"`
	}
	w = doJSON(router, http.MethodGet, "/api/v1/cart", "", session)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, int64(2*2500+800), resp.Total)

	// Unknown products are rejected up front.
	w = doJSON(router, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":404,"quantity":1}`, session)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Setting quantity to zero drops the line.
	w = doJSON(router, http.MethodPut, "/api/v1/cart/items/7", `{"quantity":0}`, session)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	w = doJSON(router, http.MethodDelete, "/api/v1/cart", "", session)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/cart", "", session)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
}

func TestPaymentWebhook_AlwaysAcknowledges(t *testing.T) {
	router, _, notifications := testRouter(t)

	// Query-parameter style delivery.
	w := doJSON(router, http.MethodPost, "/api/v1/payments/webhook?topic=payment&id=12345", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, notifications.seen["12345"])

	// Duplicate delivery still gets a 200.
	w = doJSON(router, http.MethodPost, "/api/v1/payments/webhook?topic=payment&id=12345", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Body style delivery for an unknown payment: reconciliation fails but
	// the gateway still gets its ack.
	w = doJSON(router, http.MethodPost, "/api/v1/payments/webhook",
		`{"type":"payment","data":{"id":"999"}}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Irrelevant topics are ignored.
	w = doJSON(router, http.MethodPost, "/api/v1/payments/webhook?topic=merchant_order&id=555", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, notifications.seen["555"])
}

func TestAdminSetPrimaryImage(t *testing.T) {
	router, _, _ := testRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/admin/products/7/images/32/primary", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Images []models.ProductImage `json:"images"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Images, 2)
	assert.False(t, resp.Images[0].IsPrimary, "previous primary is demoted")
	assert.True(t, resp.Images[1].IsPrimary)

	w = doJSON(router, http.MethodPost, "/api/v1/admin/products/7/images/999/primary", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVisitMiddleware_RecordsPageViews(t *testing.T) {
	router, visitStore, _ := testRouter(t)

	doJSON(router, http.MethodGet, "/api/v1/products", "", map[string]string{
		"User-Agent": "Mozilla/5.0 (Linux; Android 13) Chrome/119.0 Mobile",
	})

	assert.Eventually(t, func() bool { return visitStore.count() == 1 },
		time.Second, 10*time.Millisecond)

	visitStore.mu.Lock()
	visit := visitStore.visits[0]
	visitStore.mu.Unlock()
	assert.Equal(t, "/api/v1/products", visit.PageURL)
	assert.True(t, visit.IsMobile)
	assert.Equal(t, "Chrome", visit.Browser.String)
}

func TestVisitMiddleware_SkipsInfrastructureAndWrites(t *testing.T) {
	router, visitStore, _ := testRouter(t)

	doJSON(router, http.MethodGet, "/health", "", nil)
	doJSON(router, http.MethodGet, "/metrics", "", nil)
	doJSON(router, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":7,"quantity":1}`, map[string]string{"X-Session-ID": "s"})
	// 404s are not page views either.
	doJSON(router, http.MethodGet, "/api/v1/products/404", "", nil)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, visitStore.count())
}
