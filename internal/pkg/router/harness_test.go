package router

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseHaven/app/repository"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/auth"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/billing"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/catalog"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/checkout"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/entitlements"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/health"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/objectstore"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/ratelimit"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/security"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/statistics"
)

const testWebhookSecret = "whsec_router_test"

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = until
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

type memoryImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
}

func (m *memoryImages) Put(_ context.Context, data []byte, _, ext string) (*objectstore.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	key := fmt.Sprintf("courses/test/%d%s", m.seq, ext)
	m.objects[key] = data
	return &objectstore.StoredObject{Key: key, URL: "https://cdn.test/" + key}, nil
}

func (m *memoryImages) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// stubGateway keeps intents in memory; tests flip their status.
type stubGateway struct {
	mu      sync.Mutex
	intents map[string]*billing.Intent
	seq     int
}

func (g *stubGateway) CreateIntent(_ context.Context, req billing.IntentRequest) (*billing.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("pi_router_%d", g.seq)
	meta := map[string]string{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	g.intents[id] = &billing.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       billing.IntentRequiresPayment,
		Metadata:     meta,
	}
	cp := *g.intents[id]
	return &cp, nil
}

func (g *stubGateway) GetIntent(_ context.Context, id string) (*billing.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	cp := *in
	return &cp, nil
}

func (g *stubGateway) CancelIntent(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[id]; ok {
		in.Status = billing.IntentCanceled
	}
	return nil
}

func (g *stubGateway) created() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

func (g *stubGateway) setStatus(id string, status billing.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = status
}

type webhookCounts struct {
	mu     sync.Mutex
	counts map[string]int
}

func (w *webhookCounts) WebhookEvent(eventType, result string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[eventType+"/"+result]++
}

func (w *webhookCounts) get(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[key]
}

type harness struct {
	app      *fiber.App
	db       *gorm.DB
	gateway  *stubGateway
	webhooks *webhookCounts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	repos := repository.NewRepositories(db)

	signer, err := security.NewCredentialSigner("user-secret", "admin-secret", time.Hour)
	require.NoError(t, err)
	authService := auth.NewService(repos.User, signer, &memoryRevocations{revoked: map[string]time.Time{}})

	ledger := entitlements.NewLedger(db)
	catalogService := catalog.NewService(repos.Course, ledger, &memoryImages{objects: map[string][]byte{}}, nil)
	gateway := &stubGateway{intents: map[string]*billing.Intent{}}
	orchestrator := checkout.NewOrchestrator(catalogService, ledger, repos.CheckoutAttempt, repos.User, gateway, nil, nil,
		checkout.Config{Currency: "inr", Timeout: time.Second})
	t.Cleanup(orchestrator.Wait)

	monitor := health.NewMonitor(0).Register("database", health.DatabaseProbe(db))
	monitor.RunOnce(context.Background())

	h := &harness{
		app:      fiber.New(),
		db:       db,
		gateway:  gateway,
		webhooks: &webhookCounts{counts: map[string]int{}},
	}
	InstallRouter(h.app, Dependencies{
		Auth:                authService,
		Catalog:             catalogService,
		Checkout:            orchestrator,
		Ledger:              ledger,
		Billing:             billing.NewServiceFromDB(db),
		Statistics:          statistics.NewService(db, nil),
		Health:              monitor,
		StripeWebhookSecret: testWebhookSecret,
		RateLimit:           ratelimit.Config{Max: 10000},
		WebhookRecorder:     h.webhooks,
	})
	return h
}

func (h *harness) send(t *testing.T, req *http.Request, token string) (*http.Response, map[string]interface{}) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func (h *harness) do(t *testing.T, method, path string, payload interface{}, token string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.send(t, req, token)
}

// account signs up and logs in, returning the bearer token.
func (h *harness) account(t *testing.T, role, email string) string {
	t.Helper()
	resp, _ := h.do(t, http.MethodPost, "/api/v1/"+role+"/signup", map[string]string{
		"firstName": "Test", "lastName": "Account", "email": email, "password": "secret123",
	}, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/api/v1/"+role+"/login", map[string]string{
		"email": email, "password": "secret123",
	}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return body["token"].(string)
}

func coverPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(64, 48, color.NRGBA{R: 200, G: 80, B: 20, A: 255}), imaging.PNG))
	return buf.Bytes()
}

func courseForm(t *testing.T, fields map[string]string, fileField string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		fw, err := w.CreateFormFile(fileField, "cover.png")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (h *harness) createCourse(t *testing.T, token, title string, price int64) uint {
	t.Helper()
	body, contentType := courseForm(t, map[string]string{
		"title":       title,
		"description": "Everything about " + title,
		"price":       fmt.Sprint(price),
	}, "image", coverPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/course/create", body)
	req.Header.Set("Content-Type", contentType)
	resp, payload := h.send(t, req, token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, payload)
	course := payload["course"].(map[string]interface{})
	return uint(course["id"].(float64))
}

func signStripePayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(eventID, eventType string, intent *billing.Intent) []byte {
	meta, _ := json.Marshal(intent.Metadata)
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "api_version": "2020-08-27",
  "type": %q,
  "data": {
    "object": {
      "id": %q,
      "object": "payment_intent",
      "amount": %d,
      "currency": %q,
      "status": %q,
      "metadata": %s
    }
  }
}`, eventID, eventType, intent.ID, intent.Amount, intent.Currency, string(intent.Status), meta))
}

func (h *harness) deliver(t *testing.T, payload []byte, signature string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	return h.send(t, req, "")
}
