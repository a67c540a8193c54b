package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"consult-queue-backend/config"
	"consult-queue-backend/internal/db"
	"consult-queue-backend/internal/model"
	"consult-queue-backend/internal/queue"
	"consult-queue-backend/internal/realtime"
	"consult-queue-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter wires a full router over a per-test in-memory database.
func newTestRouter(t *testing.T) (*gin.Engine, store.Store, *queue.Engine) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(testDB))

	s := store.NewGormStore(testDB)
	require.NoError(t, s.EnsureSettings(context.Background(), &model.Settings{
		IsQueueOpen:        true,
		MinutesPerCustomer: 10,
	}))

	engine := queue.NewEngine(s)
	hub := realtime.NewHub()
	router := NewRouter(engine, s, hub, &webpush.Options{VAPIDPublicKey: "test-public-key"}, &config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 1,
	})
	return router, s, engine
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func registerBody(name string) gin.H {
	return gin.H{
		"name":  name,
		"phone": "0912000111",
		"birth": gin.H{"solarYear": 1958, "solarMonth": 4, "solarDay": 12},
		"addresses": []gin.H{
			{"category": "home", "line": "12 Elm Street"},
		},
	}
}

func TestRegisterEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/register", registerBody("Chen"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["number"])
	assert.Equal(t, float64(1), body["position"])
	assert.Equal(t, float64(0), body["estimatedWaitMinutes"])

	w = doJSON(t, router, http.MethodPost, "/api/register", registerBody("Lin"))
	require.Equal(t, http.StatusCreated, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, float64(2), body["number"])
	assert.Equal(t, float64(10), body["estimatedWaitMinutes"])
}

func TestRegisterEndpointRejectsBadPayloads(t *testing.T) {
	router, _, _ := newTestRouter(t)

	noPhone := registerBody("Chen")
	delete(noPhone, "phone")
	w := doJSON(t, router, http.MethodPost, "/api/register", noPhone)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	noAddress := registerBody("Chen")
	noAddress["addresses"] = []gin.H{}
	w = doJSON(t, router, http.MethodPost, "/api/register", noAddress)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	badEmail := registerBody("Chen")
	badEmail["email"] = "not-an-email"
	w = doJSON(t, router, http.MethodPost, "/api/register", badEmail)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// An impossible calendar date is a 400, not a 500 out of a panic.
	badBirth := registerBody("Chen")
	badBirth["birth"] = gin.H{"lunarYear": 1958, "lunarMonth": 13, "lunarDay": 40}
	w = doJSON(t, router, http.MethodPost, "/api/register", badBirth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterEndpointClosedQueue(t *testing.T) {
	router, _, engine := newTestRouter(t)

	closed := false
	_, err := engine.UpdateSettings(context.Background(), queue.SettingsPatch{IsQueueOpen: &closed})
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/api/register", registerBody("Chen"))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCallNextEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	// An empty queue is a business outcome, not an error.
	w := doJSON(t, router, http.MethodPost, "/api/admin/call-next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["queueEmpty"])

	for _, name := range []string{"Chen", "Lin"} {
		w := doJSON(t, router, http.MethodPost, "/api/register", registerBody(name))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/admin/call-next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["queueEmpty"])
	completed := body["completed"].(map[string]any)
	activated := body["activated"].(map[string]any)
	assert.Equal(t, float64(1), completed["number"])
	assert.Equal(t, "completed", completed["status"])
	assert.Equal(t, float64(2), activated["number"])
	assert.Equal(t, float64(1), activated["position"])
}

func TestEntryStatusEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, name := range []string{"Chen", "Lin"} {
		w := doJSON(t, router, http.MethodPost, "/api/register", registerBody(name))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/entries/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["number"])
	assert.Equal(t, float64(2), body["position"])
	assert.Equal(t, "waiting", body["status"])
	assert.Equal(t, float64(10), body["estimatedWaitMinutes"])

	w = doJSON(t, router, http.MethodGet, "/api/entries/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/entries/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/register", registerBody("Chen"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/search?name=Che", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	records := body["records"].([]any)
	assert.Len(t, records, 1)
}

func TestStatusEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/register", registerBody("Chen"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["isQueueOpen"])
	assert.Equal(t, float64(1), body["lastIssuedNumber"])
	assert.Equal(t, float64(1), body["waitingCount"])
}

func TestAdminEntryLifecycle(t *testing.T) {
	router, _, _ := newTestRouter(t)

	var ids []uint
	for _, name := range []string{"Chen", "Lin", "Wang"} {
		w := doJSON(t, router, http.MethodPost, "/api/register", registerBody(name))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/admin/entries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	records := body["records"].([]any)
	require.Len(t, records, 3)
	for _, r := range records {
		ids = append(ids, uint(r.(map[string]any)["id"].(float64)))
	}
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(3), pagination["total"])

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/admin/entries/%d", ids[0]), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Chen", decodeBody(t, w)["name"])

	// Move the tail to the front.
	w = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/admin/entries/%d/position", ids[2]), gin.H{"position": 1})
	require.Equal(t, http.StatusOK, w.Code)
	records = decodeBody(t, w)["records"].([]any)
	assert.Equal(t, "Wang", records[0].(map[string]any)["name"])

	// Cancel, then an invalid transition is rejected.
	w = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/admin/entries/%d/status", ids[1]), gin.H{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/admin/entries/%d/status", ids[1]), gin.H{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Replace the whole ordering.
	w = doJSON(t, router, http.MethodPut, "/api/admin/order", gin.H{"ids": []uint{ids[0], ids[2]}})
	require.Equal(t, http.StatusOK, w.Code)
	records = decodeBody(t, w)["records"].([]any)
	require.Len(t, records, 2)
	assert.Equal(t, "Chen", records[0].(map[string]any)["name"])

	w = doJSON(t, router, http.MethodPost, "/api/admin/renumber", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/admin/entries/%d", ids[0]), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/admin/entries/%d", ids[0]), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/admin/entries", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, router, http.MethodGet, "/api/admin/entries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["pagination"].(map[string]any)["total"])
}

func TestAdminUpdateEntry(t *testing.T) {
	router, s, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/register", registerBody("Chen"))
	require.Equal(t, http.StatusCreated, w.Code)

	active, err := s.ActiveEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)

	updated := registerBody("Chen Sr.")
	updated["addresses"] = []gin.H{{"category": "office", "line": "99 Harbor Road"}}
	w = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/admin/entries/%d", active[0].ID), updated)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Chen Sr.", body["name"])
	assert.Equal(t, float64(active[0].Number), body["number"])
}

func TestAdminDuplicatesEndpoint(t *testing.T) {
	router, s, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/register", registerBody("Chen"))
	require.Equal(t, http.StatusCreated, w.Code)
	rogue := model.QueueEntry{Number: 1, Status: model.StatusWaiting, Position: 2, Name: "Imposter", Phone: "0900000000"}
	require.NoError(t, s.DB().Create(&rogue).Error)

	w = doJSON(t, router, http.MethodGet, "/api/admin/duplicates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	numbers := decodeBody(t, w)["duplicateNumbers"].([]any)
	require.Len(t, numbers, 1)
	assert.Equal(t, float64(1), numbers[0])
}

func TestAdminSettingsEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/admin/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["isQueueOpen"])

	w = doJSON(t, router, http.MethodPut, "/api/admin/settings", gin.H{
		"isQueueOpen":        false,
		"minutesPerCustomer": 15,
		"nextSessionDate":    "2026-09-01",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["isQueueOpen"])
	assert.Equal(t, float64(15), body["minutesPerCustomer"])
	assert.Equal(t, "2026-09-01", body["nextSessionDate"])

	w = doJSON(t, router, http.MethodPut, "/api/admin/settings", gin.H{"minutesPerCustomer": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionEndpoints(t *testing.T) {
	router, s, _ := newTestRouter(t)

	sub := gin.H{
		"endpoint": "https://push.example.com/abc",
		"p256dh":   "key",
		"auth":     "secret",
		"number":   7,
	}
	w := doJSON(t, router, http.MethodPut, "/api/subscriptions", sub)
	require.Equal(t, http.StatusCreated, w.Code)

	// Re-subscribing the same endpoint rebinds it instead of duplicating.
	sub["number"] = 9
	w = doJSON(t, router, http.MethodPut, "/api/subscriptions", sub)
	require.Equal(t, http.StatusCreated, w.Code)

	var subs []model.PushSubscription
	require.NoError(t, s.DB().Find(&subs).Error)
	require.Len(t, subs, 1)
	assert.Equal(t, 9, subs[0].Number)

	w = doJSON(t, router, http.MethodDelete, "/api/subscriptions", gin.H{"endpoint": "https://push.example.com/abc"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NoError(t, s.DB().Find(&subs).Error)
	assert.Empty(t, subs)
}

func TestVAPIDPublicKeyEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test-public-key", decodeBody(t, w)["public_key"])
}
