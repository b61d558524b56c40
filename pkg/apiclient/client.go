package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Skotchmaster/storefront/internal/models"
)

// TokenSource yields the bearer credential for outgoing calls; empty means anonymous.
type TokenSource interface {
	Token() string
}

type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// APIError is a non-2xx answer from the marketplace backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status of an *APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(&http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			}),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type requestOptions struct {
	query          url.Values
	idempotencyKey string
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, ro *requestOptions) error {
	u := c.baseURL + path
	if ro != nil && len(ro.query) > 0 {
		u += "?" + ro.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if ro != nil && ro.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", ro.idempotencyKey)
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(raw, &payload) == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// ExchangeLogin trades a login provider credential for a session.
func (c *Client) ExchangeLogin(ctx context.Context, provider, credential string) (*models.Session, error) {
	if provider == "" || credential == "" {
		return nil, errors.New("provider and credential required")
	}
	var out models.Session
	body := map[string]string{"credential": credential}
	if err := c.do(ctx, http.MethodPost, "/auth/"+url.PathEscape(provider), body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteOnboarding(ctx context.Context, req models.OnboardingRequest) (*models.Session, error) {
	var out models.Session
	if err := c.do(ctx, http.MethodPost, "/auth/onboarding", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req models.ProfileUpdate) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodPut, "/auth/profile", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/auth/profile", nil, nil, nil)
}

func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := c.do(ctx, http.MethodGet, "/buyer/products", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// PlaceOrder creates one order; idempotencyKey lets the backend drop replays.
func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest, idempotencyKey string) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, http.MethodPost, "/buyer/orders", req, &out, &requestOptions{idempotencyKey: idempotencyKey}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBuyerOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	if err := c.do(ctx, http.MethodGet, "/buyer/orders", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListSellerProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := c.do(ctx, http.MethodGet, "/seller/products", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateSellerProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodPost, "/seller/products", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSellerProduct(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodDelete, "/seller/products/"+url.PathEscape(productID), nil, nil, nil)
}

func (c *Client) ListSellerOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	if err := c.do(ctx, http.MethodGet, "/seller/orders", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateSellerOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	body := map[string]models.OrderStatus{"status": status}
	return c.do(ctx, http.MethodPut, "/seller/orders/"+url.PathEscape(orderID), body, nil, nil)
}

func (c *Client) AdminStats(ctx context.Context) (*models.AdminStats, error) {
	var out models.AdminStats
	if err := c.do(ctx, http.MethodGet, "/admin/stats", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := c.do(ctx, http.MethodGet, "/admin/users", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(userID), nil, nil, nil)
}

func (c *Client) UpdateUserStatus(ctx context.Context, userID string, status models.UserStatus) error {
	body := map[string]models.UserStatus{"status": status}
	return c.do(ctx, http.MethodPatch, "/admin/users/"+url.PathEscape(userID)+"/status", body, nil, nil)
}

func (c *Client) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	if err := c.do(ctx, http.MethodGet, "/admin/orders", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	body := map[string]models.OrderStatus{"status": status}
	return c.do(ctx, http.MethodPatch, "/admin/orders/"+url.PathEscape(orderID)+"/status", body, nil, nil)
}

type NotificationQuery struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

func (c *Client) ListNotifications(ctx context.Context, q NotificationQuery) (*models.NotificationPage, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("unreadOnly", strconv.FormatBool(q.UnreadOnly))

	var out models.NotificationPage
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, &out, &requestOptions{query: v}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/read-all", nil, nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ClearNotifications(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/notifications", nil, nil, nil)
}

func (c *Client) NotificationStats(ctx context.Context) (*models.NotificationStats, error) {
	var out models.NotificationStats
	if err := c.do(ctx, http.MethodGet, "/notifications/stats", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}
