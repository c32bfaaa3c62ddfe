package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kariteco/storefront-core/pkg/types"
)

// fakeAPI is a minimal in-process stand-in for the storefront backend. It
// implements just enough of the auth and cart surface for the client tests,
// including token rotation on refresh.
type fakeAPI struct {
	t *testing.T

	mu            sync.Mutex
	accessToken   string
	refreshToken  string
	refreshCalls  int
	bulkCalls     int
	cartAlways401 bool
	bulkFails     bool

	// refreshHook runs at the top of the refresh handler, before validation.
	refreshHook func()

	products  map[string]types.ProductSummary
	userItems []types.CartItemView
	guestDocs map[string][]types.CartItemView

	server *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	butter := types.ProductSummary{ID: uuid.NewString(), Slug: "raw-shea-butter", Title: "Raw Shea Butter", Price: decimal.RequireFromString("20.00")}
	soap := types.ProductSummary{ID: uuid.NewString(), Slug: "black-soap", Title: "African Black Soap", Price: decimal.RequireFromString("5.00")}

	f := &fakeAPI{
		t: t,
		products: map[string]types.ProductSummary{
			butter.ID: butter,
			soap.ID:   soap,
		},
		guestDocs: map[string][]types.CartItemView{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) butter() types.ProductSummary { return f.productBySlug("raw-shea-butter") }
func (f *fakeAPI) soap() types.ProductSummary   { return f.productBySlug("black-soap") }

func (f *fakeAPI) productBySlug(slug string) types.ProductSummary {
	for _, p := range f.products {
		if p.Slug == slug {
			return p
		}
	}
	f.t.Fatalf("unknown product slug %q", slug)
	return types.ProductSummary{}
}

// issueSession installs a valid token pair server-side and returns it.
func (f *fakeAPI) issueSession() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessToken = "access-" + uuid.NewString()
	f.refreshToken = "refresh-" + uuid.NewString()
	return f.accessToken, f.refreshToken
}

func (f *fakeAPI) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeAPI) bulkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bulkCalls
}

func (f *fakeAPI) seedGuestItems(sessionID string, items ...types.CartItemView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guestDocs[sessionID] = items
}

func guestLine(product types.ProductSummary, qty int) types.CartItemView {
	now := time.Now().UTC()
	return types.CartItemView{ID: uuid.NewString(), Product: product, Quantity: qty, CreatedAt: now, UpdatedAt: now}
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: data})
}

func writeAPIError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.ErrorEnvelope{Error: types.APIError{Code: code, Message: msg}})
}

func snapshotOf(items []types.CartItemView) types.CartSnapshot {
	s := types.EmptyCartSnapshot()
	s.Items = append(s.Items, items...)
	s.Recount()
	return s
}

func (f *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/auth/"):
		f.handleAuth(w, r)
	case strings.HasPrefix(path, "/api/v1/guest/cart"):
		f.handleGuestCart(w, r)
	case strings.HasPrefix(path, "/api/v1/cart"):
		f.handleUserCart(w, r)
	default:
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "no route")
	}
}

func (f *fakeAPI) handleAuth(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimPrefix(r.URL.Path, "/api/v1/auth/") {
	case "login":
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password == "wrong-password" {
			writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
			return
		}
		access, refresh := f.issueSession()
		writeData(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"user":          map[string]any{"id": uuid.NewString(), "email": body.Email},
		})
	case "register":
		var body struct {
			Email string `json:"email"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		access, refresh := f.issueSession()
		writeData(w, http.StatusCreated, map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"user":          map[string]any{"id": uuid.NewString(), "email": body.Email},
		})
	case "refresh":
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		hook := f.refreshHook
		f.mu.Unlock()
		if hook != nil {
			hook()
		}
		f.mu.Lock()
		f.refreshCalls++
		valid := body.RefreshToken == f.refreshToken && f.refreshToken != ""
		if !valid {
			f.mu.Unlock()
			writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid refresh token")
			return
		}
		f.accessToken = "access-" + uuid.NewString()
		f.refreshToken = "refresh-" + uuid.NewString()
		access, refresh := f.accessToken, f.refreshToken
		f.mu.Unlock()
		writeData(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
		})
	case "logout":
		f.mu.Lock()
		f.accessToken = ""
		f.refreshToken = ""
		f.mu.Unlock()
		writeData(w, http.StatusOK, map[string]string{"status": "logged_out"})
	default:
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "no route")
	}
}

func (f *fakeAPI) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cartAlways401 {
		return false
	}
	return f.accessToken != "" && r.Header.Get("Authorization") == "Bearer "+f.accessToken
}

func (f *fakeAPI) handleUserCart(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing credentials")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/api/v1/cart" && r.Method == http.MethodGet:
	case r.URL.Path == "/api/v1/cart" && r.Method == http.MethodDelete:
		f.userItems = nil
	case r.URL.Path == "/api/v1/cart/items" && r.Method == http.MethodPost:
		var body struct {
			ProductID string `json:"product_id"`
			Quantity  int    `json:"quantity"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mergeUserLine(body.ProductID, body.Quantity)
	case r.URL.Path == "/api/v1/cart/items/bulk" && r.Method == http.MethodPost:
		if f.bulkFails {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			return
		}
		var body struct {
			Items []struct {
				ProductID string `json:"product_id"`
				Quantity  int    `json:"quantity"`
			} `json:"items"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.bulkCalls++
		for _, line := range body.Items {
			f.mergeUserLine(line.ProductID, line.Quantity)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/cart/items/") && r.Method == http.MethodDelete:
		itemID := strings.TrimPrefix(r.URL.Path, "/api/v1/cart/items/")
		kept := f.userItems[:0]
		for _, item := range f.userItems {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		f.userItems = kept
	case strings.HasPrefix(r.URL.Path, "/api/v1/cart/items/") && r.Method == http.MethodPut:
		itemID := strings.TrimPrefix(r.URL.Path, "/api/v1/cart/items/")
		var body struct {
			Quantity int `json:"quantity"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for i := range f.userItems {
			if f.userItems[i].ID == itemID {
				f.userItems[i].Quantity = body.Quantity
			}
		}
	default:
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "no route")
		return
	}

	writeData(w, http.StatusOK, snapshotOf(f.userItems))
}

// mergeUserLine assumes f.mu is held.
func (f *fakeAPI) mergeUserLine(productID string, qty int) {
	for i := range f.userItems {
		if f.userItems[i].Product.ID == productID {
			f.userItems[i].Quantity += qty
			return
		}
	}
	product, ok := f.products[productID]
	if !ok {
		return
	}
	f.userItems = append(f.userItems, guestLine(product, qty))
}

func (f *fakeAPI) handleGuestCart(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Guest-Session")
	if !strings.HasPrefix(sessionID, "guest_") {
		writeAPIError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing guest session header")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.guestDocs[sessionID]

	switch {
	case r.URL.Path == "/api/v1/guest/cart" && r.Method == http.MethodGet:
	case r.URL.Path == "/api/v1/guest/cart" && r.Method == http.MethodDelete:
		delete(f.guestDocs, sessionID)
		items = nil
	case r.URL.Path == "/api/v1/guest/cart/items" && r.Method == http.MethodPost:
		var body struct {
			ProductID string `json:"product_id"`
			Quantity  int    `json:"quantity"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		merged := false
		for i := range items {
			if items[i].Product.ID == body.ProductID {
				items[i].Quantity += body.Quantity
				merged = true
			}
		}
		if !merged {
			if product, ok := f.products[body.ProductID]; ok {
				items = append(items, guestLine(product, body.Quantity))
			}
		}
		f.guestDocs[sessionID] = items
	case strings.HasPrefix(r.URL.Path, "/api/v1/guest/cart/items/") && r.Method == http.MethodPut:
		itemID := strings.TrimPrefix(r.URL.Path, "/api/v1/guest/cart/items/")
		var body struct {
			Quantity int `json:"quantity"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		found := false
		for i := range items {
			if items[i].ID == itemID {
				items[i].Quantity = body.Quantity
				found = true
			}
		}
		if !found {
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "cart item not found")
			return
		}
		f.guestDocs[sessionID] = items
	case strings.HasPrefix(r.URL.Path, "/api/v1/guest/cart/items/") && r.Method == http.MethodDelete:
		itemID := strings.TrimPrefix(r.URL.Path, "/api/v1/guest/cart/items/")
		kept := items[:0]
		for _, item := range items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		items = kept
		f.guestDocs[sessionID] = items
	default:
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "no route")
		return
	}

	writeData(w, http.StatusOK, snapshotOf(items))
}
