package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/internal/service/checkout"
	"github.com/Skotchmaster/storefront/internal/service/notify"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/uistate"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
	"github.com/Skotchmaster/storefront/pkg/logging"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
)

// marketplace is a minimal stand-in for the remote REST API.
type marketplace struct {
	mu         sync.Mutex
	role       models.Role
	orders     []models.OrderRequest
	markedRead []string
	writes     []string
}

func (m *marketplace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := r.Method + " " + r.URL.Path
	switch {
	case path == "POST /auth/google":
		_, _ = io.WriteString(w, `{"user":{"_id":"u1","name":"Asha","role":"`+string(m.role)+`"},"token":"tok-1"}`)
	case path == "POST /auth/onboarding":
		var req models.OnboardingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.role = req.Role
		_, _ = io.WriteString(w, `{"user":{"_id":"u1","name":"Asha","role":"`+string(req.Role)+`","address":{"city":"Pune","pincode":"411001"}},"token":"tok-2"}`)
	case path == "PUT /auth/profile":
		_, _ = io.WriteString(w, `{"_id":"u1","name":"Asha K","role":"`+string(m.role)+`"}`)
	case path == "DELETE /auth/profile":
		w.WriteHeader(http.StatusNoContent)
	case path == "GET /buyer/products":
		_, _ = io.WriteString(w, `[
			{"_id":"A","name":"Apple","price":10,"stock":5,"category":"fruits","seller":{"_id":"S1","name":"Orchard"}},
			{"_id":"B","name":"Bread","price":5,"stock":9,"category":"bakery","seller":{"_id":"S2","name":"Bakery"}},
			{"_id":"C","name":"Carrot","price":2,"stock":1,"category":"vegetables","seller":{"_id":"S1","name":"Orchard"}}]`)
	case path == "POST /buyer/orders":
		var req models.OrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.orders = append(m.orders, req)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"_id":"o-`+req.SellerID+`","status":"Pending"}`)
	case path == "GET /buyer/orders", path == "GET /seller/orders", path == "GET /admin/orders":
		_, _ = io.WriteString(w, `[
			{"_id":"o1","status":"Pending","totalPrice":20,"buyerName":"Asha","sellerName":"Orchard"},
			{"_id":"o2","status":"Delivered","totalPrice":5,"buyerName":"Asha","sellerName":"Bakery"}]`)
	case path == "GET /seller/products":
		_, _ = io.WriteString(w, `[{"_id":"A","name":"Apple","price":10,"stock":5}]`)
	case path == "POST /seller/products":
		var in models.ProductInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		m.writes = append(m.writes, path+" "+in.Name)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"_id":"N1","name":"`+in.Name+`","price":`+in.Price.String()+`,"stock":1}`)
	case path == "DELETE /seller/products/missing":
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Product not found"}`)
	case strings.HasPrefix(path, "PATCH /notifications/"):
		m.markedRead = append(m.markedRead, strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/notifications/"), "/read"))
		w.WriteHeader(http.StatusNoContent)
	case path == "GET /admin/stats":
		_, _ = io.WriteString(w, `{"buyerCount":3,"sellerCount":2,"orderCount":2}`)
	case path == "GET /admin/users":
		_, _ = io.WriteString(w, `[
			{"_id":"u1","name":"Asha","role":"Admin","status":"active"},
			{"_id":"u7","name":"Ravi","role":"Seller"},
			{"_id":"u8","name":"Meera","role":"Buyer","status":"suspended"}]`)
	case r.Method != http.MethodGet && (strings.HasPrefix(r.URL.Path, "/seller/") || strings.HasPrefix(r.URL.Path, "/admin/")):
		var body struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		m.writes = append(m.writes, strings.TrimSpace(path+" "+body.Status))
		w.WriteHeader(http.StatusNoContent)
	case path == "GET /notifications":
		_, _ = io.WriteString(w, `{"notifications":[{"_id":"n1","title":"Order placed","read":false,"createdAt":"2026-01-01T10:00:00Z"}],"unreadCount":1}`)
	case path == "GET /notifications/stats":
		_, _ = io.WriteString(w, `{"total":1,"unread":1}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	}
}

type testEnv struct {
	e       *echo.Echo
	store   *session.Store
	market  *marketplace
	notify  *notify.Service
	toggles *uistate.Toggles
}

func newTestEnv(t *testing.T, role models.Role) *testEnv {
	t.Helper()

	m := &marketplace{role: role}
	backend := httptest.NewServer(m)
	t.Cleanup(backend.Close)

	log := logging.Discard()
	bus := events.New(log)
	store := session.NewStore(session.NewMemoryPersister(), session.WithBus(bus), session.WithLogger(log))
	store.Restore(context.Background())

	client := apiclient.NewClient(backend.URL, 5*time.Second,
		apiclient.WithHTTPClient(backend.Client()),
		apiclient.WithTokenSource(store),
	)
	notifySvc := notify.NewService(client, bus, log, 0)
	toggles := uistate.New(uistate.Sidebar, uistate.AdminSidebar)

	e := echo.New()
	Register(e, &Deps{
		SessionHandler:      &SessionHTTP{Store: store, API: client, UI: toggles},
		CartHandler:         &CartHTTP{Store: store},
		CheckoutHandler:     &CheckoutHTTP{Svc: checkout.NewService(client, store, bus, log, 2)},
		CatalogHandler:      &CatalogHTTP{Svc: &catalog.Service{API: client}},
		NotificationHandler: &NotificationHTTP{Svc: notifySvc, Bus: bus},
		UIHandler:           &UIHTTP{Toggles: toggles},
		OrdersHandler:       &OrdersHTTP{API: client},
		AdminHandler:        &AdminHTTP{API: client},
		Guard:               middleware.NewSessionGuard(store),
		Ready:               func() bool { return !store.IsLoading() },
	})

	return &testEnv{e: e, store: store, market: m, notify: notifySvc, toggles: toggles}
}

func (env *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleBuyer)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "").Code)
}

func TestGuardedRoutesNeedSession(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleBuyer)

	for _, target := range []string{"/cart", "/products", "/notifications"} {
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, target, "").Code, target)
	}
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/checkout", "").Code)

	snap := decode[session.Snapshot](t, env.do(t, http.MethodGet, "/session", ""))
	assert.False(t, snap.Authenticated)
	assert.False(t, snap.Loading)
}

func TestLogin_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleBuyer)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/session/login", `{"provider":"google"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/session/login", `{nope`).Code)
	rec := env.do(t, http.MethodPost, "/session/login", `{"provider":"github","credential":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[string](t, rec))
	assert.False(t, env.store.IsAuthenticated())
}

func TestOnboardingThenCheckout(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RolePending)

	rec := env.do(t, http.MethodPost, "/session/login", `{"provider":"google","credential":"cred"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[session.Snapshot](t, rec)
	assert.True(t, snap.Onboarding)

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodGet, "/cart", "").Code)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/session/onboarding", `{"role":"Admin","businessName":"x","phone":"1"}`).Code)
	rec = env.do(t, http.MethodPost, "/session/onboarding", `{"role":"Buyer","businessName":"Asha Stores","phone":"999","address":{"city":"Pune"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-2", env.store.Token())

	env.do(t, http.MethodPost, "/cart/A", "")
	env.do(t, http.MethodPost, "/cart/B", "")
	rec = env.do(t, http.MethodPost, "/cart/B", "")
	cart := decode[cartResponse](t, rec)
	assert.Equal(t, map[string]int{"A": 1, "B": 2}, cart.Items)
	assert.Equal(t, 3, cart.ItemCount)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/cart/Z", "").Code)

	rec = env.do(t, http.MethodPost, "/checkout", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[checkout.Result](t, rec)
	assert.Len(t, res.Succeeded, 2)

	env.market.mu.Lock()
	require.Len(t, env.market.orders, 2)
	for _, o := range env.market.orders {
		assert.Equal(t, "411001", o.DeliveryAddress.Pincode, "falls back to the saved address")
		assert.Equal(t, "10", o.TotalPrice.String())
	}
	env.market.mu.Unlock()

	assert.Empty(t, env.store.Cart())
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/checkout", "").Code)
}

func TestCheckout_SellerForbidden(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleSeller)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/session/login", `{"credential":"cred"}`).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/checkout", "").Code)
}

func TestProducts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleBuyer)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/session/login", `{"credential":"cred"}`).Code)

	rec := env.do(t, http.MethodGet, "/products?sort=price-low&max=9&page=1&size=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[productPage](t, rec)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "C", page.Products[0].ID)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "10", page.MaxPrice.String())

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/products?sort=random", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/products?min=abc", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/products/search?q=apple", "").Code)
}

func TestNotifications(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleBuyer)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/session/login", `{"credential":"cred"}`).Code)

	_, err := env.notify.Fetch(context.Background(), apiclient.NotificationQuery{})
	require.NoError(t, err)

	list := decode[notificationList](t, env.do(t, http.MethodGet, "/notifications", ""))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, 1, list.UnreadCount)
	assert.NotEmpty(t, list.Notifications[0].TimeAgo)

	rec := env.do(t, http.MethodPost, "/notifications/n1/read", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode[notificationList](t, rec)
	assert.Zero(t, list.UnreadCount)
	assert.True(t, list.Notifications[0].Read)

	env.market.mu.Lock()
	assert.Equal(t, []string{"n1"}, env.market.markedRead)
	env.market.mu.Unlock()

	rec = env.do(t, http.MethodDelete, "/notifications/n1", "")
	list = decode[notificationList](t, rec)
	assert.Empty(t, list.Notifications)
	assert.NotEmpty(t, list.Error, "backend has no delete route, failure is surfaced")

	stats := decode[models.NotificationStats](t, env.do(t, http.MethodGet, "/notifications/stats", ""))
	assert.Equal(t, 1, stats.Total)

	assert.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/notifications/refresh", "").Code)
}

func TestProfileAndLogout(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleBuyer)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/session/login", `{"credential":"cred"}`).Code)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/profile", `{"name":" "}`).Code)
	rec := env.do(t, http.MethodPut, "/profile", `{"name":"Asha K"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	u, _ := env.store.User()
	assert.Equal(t, "Asha K", u.Name)

	env.toggles.Open(uistate.Sidebar)
	env.do(t, http.MethodPost, "/cart/A", "")
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/session/logout", "").Code)
	assert.False(t, env.store.IsAuthenticated())
	assert.Empty(t, env.store.Cart())
	assert.False(t, env.toggles.IsOpen(uistate.Sidebar))
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/cart", "").Code)
}

func TestDeleteAccount(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleBuyer)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/session/login", `{"credential":"cred"}`).Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/profile", "").Code)
	assert.False(t, env.store.IsAuthenticated())
}

func TestUIToggles(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleBuyer)

	rec := env.do(t, http.MethodPost, "/ui/toggles/sidebar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"sidebar": true}, decode[map[string]bool](t, rec))

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/ui/toggles/chat", "").Code)
	all := decode[map[string]bool](t, env.do(t, http.MethodGet, "/ui/toggles", ""))
	assert.Equal(t, map[string]bool{"sidebar": true, "admin_sidebar": false}, all)
}

func TestBuyerOrders(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleBuyer)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/session/login", `{"credential":"cred"}`).Code)

	rec := env.do(t, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Order](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/orders?status=delivered", "")
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decode[[]models.Order](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, "o2", orders[0].ID)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/orders?status=lost", "").Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/seller/products", "").Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/admin/stats", "").Code)
}

func TestSellerRoutes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleSeller)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/session/login", `{"credential":"cred"}`).Code)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/orders", "").Code)

	rec := env.do(t, http.MethodGet, "/seller/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Product](t, rec), 1)

	for _, body := range []string{
		`{"name":"  ","price":10,"stock":1}`,
		`{"name":"Dal","price":0,"stock":1}`,
		`{"name":"Dal","price":10,"stock":-1}`,
		`{nope`,
	} {
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/seller/products", body).Code, body)
	}

	rec = env.do(t, http.MethodPost, "/seller/products", `{"name":" Dal ","price":90.5,"stock":3,"unit":"kg"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Product](t, rec)
	assert.Equal(t, "90.5", created.Price.String())

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/seller/products/A", "").Code)
	rec = env.do(t, http.MethodDelete, "/seller/products/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decode[string](t, rec))

	rec = env.do(t, http.MethodGet, "/seller/orders?status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Order](t, rec), 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/seller/orders/o1", `{"status":"Shipped"}`).Code)
	rec = env.do(t, http.MethodPut, "/seller/orders/o1", `{"status":"accepted"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "Accepted"}, decode[map[string]string](t, rec))

	env.market.mu.Lock()
	defer env.market.mu.Unlock()
	assert.Equal(t, []string{
		"POST /seller/products Dal",
		"DELETE /seller/products/A",
		"PUT /seller/orders/o1 Accepted",
	}, env.market.writes)
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.RoleAdmin)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/session/login", `{"credential":"cred"}`).Code)

	rec := env.do(t, http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AdminStats{BuyerCount: 3, SellerCount: 2, OrderCount: 2}, decode[models.AdminStats](t, rec))

	rec = env.do(t, http.MethodGet, "/admin/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[adminDashboard](t, rec)
	assert.Equal(t, 3, dash.Stats.BuyerCount)
	assert.Len(t, dash.RecentOrders, 2)

	rec = env.do(t, http.MethodGet, "/admin/users?role=Seller", "")
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]models.User](t, rec)
	require.Len(t, users, 1)
	assert.Equal(t, models.UserActive, users[0].Status)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, "/admin/users/u7/status", `{"status":"banned"}`).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPatch, "/admin/users/u1/status", `{"status":"suspended"}`).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodDelete, "/admin/users/u1", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPatch, "/admin/users/u7/status", `{"status":"suspended"}`).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/admin/users/u8", "").Code)

	rec = env.do(t, http.MethodGet, "/admin/orders?status=Pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decode[[]models.Order](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, "Orchard", orders[0].SellerName)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, "/admin/orders/o1/status", `{"status":""}`).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPatch, "/admin/orders/o1/status", `{"status":"Out for Delivery"}`).Code)

	env.market.mu.Lock()
	defer env.market.mu.Unlock()
	assert.Equal(t, []string{
		"PATCH /admin/users/u7/status suspended",
		"DELETE /admin/users/u8",
		"PATCH /admin/orders/o1/status Out for Delivery",
	}, env.market.writes)
}
