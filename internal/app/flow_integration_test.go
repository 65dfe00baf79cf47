//go:build integration

package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obaraelijah/LeafLine-Server/internal/auth"
)

// These tests run against a live server. LEAFLINE_URL defaults to
// localhost:8080 and JWT_SECRET must match the server's secret. Set
// LEAFLINE_BOOK_ID to a seeded, priced, in-stock book to run a full
// checkout against the mock payment provider. LEAFLINE_DATABASE_URL gives
// the concurrency tests direct access to the catalog so they can stock books
// with exact quantities.

func baseURL() string {
	if u := os.Getenv("LEAFLINE_URL"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "http://localhost:8080"
}

// skipIfNotRunning performs a quick liveness check and skips the test when
// the server is unreachable.
func skipIfNotRunning(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL() + "/health/live")
	if err != nil {
		t.Skipf("leafline server at %s not reachable: %v", baseURL(), err)
	}
	resp.Body.Close()
}

func issueToken(t *testing.T, role string) string {
	t.Helper()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		t.Skip("JWT_SECRET not set")
	}
	token, err := auth.NewJWTManager(secret, time.Hour).
		GenerateAccessToken(uuid.NewString(), role+"@leafline.test", role)
	if err != nil {
		t.Fatalf("issuing %s token failed: %v", role, err)
	}
	return token
}

func doJSONRequest(t *testing.T, method, path string, body any, token string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	status, data, err := sendJSON(method, path, body, token, headers)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return status, data
}

// sendJSON reports failures as errors so it can be called from goroutines.
func sendJSON(method, path string, body any, token string, headers map[string]string) (int, map[string]any, error) {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL()+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 40 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, decodeBody(raw), nil
}

// decodeBody returns the raw text under "raw" when the body is not JSON.
func decodeBody(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return result
}

func requireStatus(t *testing.T, got, want int, data map[string]any) {
	t.Helper()
	if got != want {
		t.Fatalf("expected status %d, got %d: %v", want, got, data)
	}
}

// extractField walks a dot-separated path through nested JSON objects.
func extractField(data map[string]any, path string) any {
	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		if current, ok = m[part]; !ok {
			return nil
		}
	}
	return current
}

func checkoutBody(bookID string, quantity int) map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"bookId": bookID, "quantity": quantity},
		},
		"shippingAddress": map[string]any{
			"street":     "12 Folio Lane",
			"city":       "Portland",
			"postalCode": "97201",
			"country":    "US",
		},
	}
}

func TestHealth(t *testing.T) {
	skipIfNotRunning(t)

	status, _ := doJSONRequest(t, http.MethodGet, "/health/ready", nil, "", nil)
	if status != http.StatusOK && status != http.StatusServiceUnavailable {
		t.Fatalf("unexpected readiness status %d", status)
	}
}

func TestOrders_RequireToken(t *testing.T) {
	skipIfNotRunning(t)

	status, data := doJSONRequest(t, http.MethodGet, "/api/v1/order", nil, "", nil)
	requireStatus(t, status, http.StatusUnauthorized, data)
}

func TestCheckout_UnknownBook(t *testing.T) {
	skipIfNotRunning(t)
	token := issueToken(t, "user")

	status, data := doJSONRequest(t, http.MethodPost, "/api/v1/order",
		checkoutBody(uuid.NewString(), 1), token, nil)
	requireStatus(t, status, http.StatusNotFound, data)
}

func TestCheckout_InvalidQuantity(t *testing.T) {
	skipIfNotRunning(t)
	token := issueToken(t, "user")

	status, data := doJSONRequest(t, http.MethodPost, "/api/v1/order",
		checkoutBody(uuid.NewString(), 0), token, nil)
	requireStatus(t, status, http.StatusBadRequest, data)
}

func TestListOrders_NewCustomerHasNone(t *testing.T) {
	skipIfNotRunning(t)
	token := issueToken(t, "user")

	status, data := doJSONRequest(t, http.MethodGet, "/api/v1/order?page=1", nil, token, nil)
	requireStatus(t, status, http.StatusOK, data)

	if total, _ := extractField(data, "data.totalCount").(float64); total != 0 {
		t.Fatalf("expected no orders for a fresh customer, got %v", total)
	}
}

func TestUpdateStatus_CustomerForbidden(t *testing.T) {
	skipIfNotRunning(t)
	token := issueToken(t, "user")

	status, data := doJSONRequest(t, http.MethodPatch, "/api/v1/order/LL-0000000000/update-status",
		map[string]any{"newStatus": "Shipped"}, token, nil)
	requireStatus(t, status, http.StatusForbidden, data)
}

// TestCheckoutFlow places an order, checks the duplicate guard, then walks
// the order forward as an administrator.
func TestCheckoutFlow(t *testing.T) {
	skipIfNotRunning(t)
	bookID := os.Getenv("LEAFLINE_BOOK_ID")
	if bookID == "" {
		t.Skip("LEAFLINE_BOOK_ID not set")
	}
	customer := issueToken(t, "user")
	admin := issueToken(t, "admin")
	key := map[string]string{"Idempotency-Key": uuid.NewString()}

	status, data := doJSONRequest(t, http.MethodPost, "/api/v1/order", checkoutBody(bookID, 1), customer, key)
	requireStatus(t, status, http.StatusOK, data)
	if secret, _ := extractField(data, "clientSecret").(string); secret == "" {
		t.Fatalf("expected clientSecret in response, got %v", data)
	}

	status, data = doJSONRequest(t, http.MethodPost, "/api/v1/order", checkoutBody(bookID, 1), customer, key)
	requireStatus(t, status, http.StatusConflict, data)

	status, data = doJSONRequest(t, http.MethodGet, "/api/v1/order", nil, customer, nil)
	requireStatus(t, status, http.StatusOK, data)
	orders, _ := extractField(data, "data.orders").([]any)
	if len(orders) != 1 {
		t.Fatalf("expected exactly one order, got %d", len(orders))
	}
	first, _ := orders[0].(map[string]any)
	orderID, _ := first["orderId"].(string)
	if !strings.HasPrefix(orderID, "LL-") {
		t.Fatalf("unexpected order id %q", orderID)
	}
	if paid, _ := first["isPaid"].(bool); !paid {
		t.Fatal("expected order to be paid")
	}
	if first["orderStatus"] != "Processing" {
		t.Fatalf("expected Processing, got %v", first["orderStatus"])
	}

	status, data = doJSONRequest(t, http.MethodPatch, "/api/v1/order/"+orderID+"/update-status",
		map[string]any{"newStatus": "Out for Delivery"}, admin, nil)
	requireStatus(t, status, http.StatusOK, data)

	status, data = doJSONRequest(t, http.MethodPatch, "/api/v1/order/"+orderID+"/update-status",
		map[string]any{"newStatus": "Shipped"}, admin, nil)
	requireStatus(t, status, http.StatusBadRequest, data)

	status, data = doJSONRequest(t, http.MethodPatch, "/api/v1/order/"+orderID+"/update-status",
		map[string]any{"newStatus": "Delivered"}, admin, nil)
	requireStatus(t, status, http.StatusOK, data)
	if delivered, _ := extractField(data, "data.isDelivered").(bool); !delivered {
		t.Fatal("expected isDelivered after Delivered")
	}

	other := issueToken(t, "user")
	status, data = doJSONRequest(t, http.MethodGet, "/api/v1/order/"+orderID, nil, other, nil)
	requireStatus(t, status, http.StatusNotFound, data)
}

// seedBook inserts a book with the given stock straight into the catalog.
func seedBook(t *testing.T, stock int) string {
	t.Helper()
	dsn := os.Getenv("LEAFLINE_DATABASE_URL")
	if dsn == "" {
		t.Skip("LEAFLINE_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to database failed: %v", err)
	}
	t.Cleanup(pool.Close)

	id := uuid.NewString()
	_, err = pool.Exec(ctx,
		`INSERT INTO books (id, title, price, shipping_fee, stock) VALUES ($1, $2, $3, $4, $5)`,
		id, "Concurrency Test "+id[:8], "9.99", "1.00", stock)
	if err != nil {
		t.Fatalf("inserting book failed: %v", err)
	}
	return id
}

type checkoutResult struct {
	status int
	data   map[string]any
	err    error
}

// placeConcurrently releases n checkouts at once and collects their results.
func placeConcurrently(n int, token func(i int) string, body map[string]any) []checkoutResult {
	results := make([]checkoutResult, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, data, err := sendJSON(http.MethodPost, "/api/v1/order", body, token(i), nil)
			results[i] = checkoutResult{status: status, data: data, err: err}
		}()
	}
	close(start)
	wg.Wait()
	return results
}

func TestCheckout_LastCopySellsOnce(t *testing.T) {
	skipIfNotRunning(t)
	bookID := seedBook(t, 1)
	tokens := []string{issueToken(t, "user"), issueToken(t, "user")}

	results := placeConcurrently(2, func(i int) string { return tokens[i] }, checkoutBody(bookID, 1))

	var succeeded, outOfStock int
	for _, r := range results {
		if r.err != nil {
			t.Fatalf("checkout request failed: %v", r.err)
		}
		switch r.status {
		case http.StatusOK:
			succeeded++
		case http.StatusConflict:
			msg, _ := r.data["message"].(string)
			if !strings.Contains(msg, "out of stock") {
				t.Fatalf("expected out of stock conflict, got %v", r.data)
			}
			outOfStock++
		default:
			t.Fatalf("unexpected status %d: %v", r.status, r.data)
		}
	}
	if succeeded != 1 || outOfStock != 1 {
		t.Fatalf("expected one sale and one out of stock, got %d and %d", succeeded, outOfStock)
	}
}

func TestCheckout_ConcurrentOrdersGetDistinctIdentifiers(t *testing.T) {
	skipIfNotRunning(t)
	const n = 10
	bookID := seedBook(t, n)
	customer := issueToken(t, "user")

	results := placeConcurrently(n, func(int) string { return customer }, checkoutBody(bookID, 1))
	for _, r := range results {
		if r.err != nil {
			t.Fatalf("checkout request failed: %v", r.err)
		}
		requireStatus(t, r.status, http.StatusOK, r.data)
	}

	status, data := doJSONRequest(t, http.MethodGet, "/api/v1/order?limit=100", nil, customer, nil)
	requireStatus(t, status, http.StatusOK, data)
	orders, _ := extractField(data, "data.orders").([]any)
	if len(orders) != n {
		t.Fatalf("expected %d orders, got %d", n, len(orders))
	}

	orderIDs := make(map[string]bool, n)
	trackingNumbers := make(map[string]bool, n)
	for _, o := range orders {
		order, _ := o.(map[string]any)
		orderID, _ := order["orderId"].(string)
		tracking, _ := order["trackingNumber"].(string)
		if orderIDs[orderID] {
			t.Fatalf("duplicate orderId %q", orderID)
		}
		if trackingNumbers[tracking] {
			t.Fatalf("duplicate trackingNumber %q", tracking)
		}
		orderIDs[orderID] = true
		trackingNumbers[tracking] = true
	}
}
