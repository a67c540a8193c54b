package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"consult-queue-backend/config"
	"consult-queue-backend/internal/api"
	"consult-queue-backend/internal/db"
	"consult-queue-backend/internal/model"
	"consult-queue-backend/internal/queue"
	"consult-queue-backend/internal/realtime"
	"consult-queue-backend/internal/store"
)

// TestQueueLifecycle walks one consultation day end to end over the HTTP
// surface and verifies the database state after every step.
func TestQueueLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// --- Test Setup ---

	// 1. In-memory SQLite database with the full schema.
	testDB, err := gorm.Open(sqlite.Open("file:lifecycle?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	// 2. Store, engine and router wired the way main does it.
	appStore := store.NewGormStore(testDB)
	require.NoError(t, appStore.EnsureSettings(context.Background(), &model.Settings{
		IsQueueOpen:        true,
		MinutesPerCustomer: 10,
	}))

	hub := realtime.NewHub()
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go hub.Run(hubCtx)

	engine := queue.NewEngine(appStore, realtime.NewNotifier(hub))
	router := api.NewRouter(engine, appStore, hub, &webpush.Options{VAPIDPublicKey: "test-key"}, &config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 1,
	})
	server := httptest.NewServer(router)
	defer server.Close()

	client := server.Client()

	postJSON := func(method, path string, body any) (*http.Response, map[string]any) {
		var payload []byte
		if body != nil {
			payload, err = json.Marshal(body)
			require.NoError(t, err)
		}
		req, err := http.NewRequest(method, server.URL+path, bytes.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var decoded map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
		return resp, decoded
	}

	register := func(name string) map[string]any {
		resp, body := postJSON(http.MethodPost, "/api/register", gin.H{
			"name":  name,
			"phone": "0912000111",
			"birth": gin.H{"solarYear": 1958, "solarMonth": 4, "solarDay": 12},
			"addresses": []gin.H{
				{"category": "home", "line": "12 Elm Street"},
			},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		return body
	}

	activeByPosition := func() []model.QueueEntry {
		active, err := appStore.ActiveEntries(context.Background())
		require.NoError(t, err)
		for i := range active {
			require.Equal(t, i+1, active[i].Position, "active ordering must stay contiguous")
		}
		return active
	}

	var ids []uint

	// --- Cycle 1: Three customers register ---
	t.Run("Cycle 1: Registration", func(t *testing.T) {
		for i, name := range []string{"Chen", "Lin", "Wang"} {
			body := register(name)
			assert.Equal(t, float64(i+1), body["number"])
			assert.Equal(t, float64(i+1), body["position"])
		}

		active := activeByPosition()
		require.Len(t, active, 3)
		for _, e := range active {
			ids = append(ids, e.ID)
		}

		settings, err := appStore.Settings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, settings.LastIssuedNumber)
	})

	// --- Cycle 2: The operator reorders the line ---
	t.Run("Cycle 2: Reorder", func(t *testing.T) {
		resp, body := postJSON(http.MethodPut, "/api/admin/order", gin.H{"ids": []uint{ids[2], ids[0]}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		records := body["records"].([]any)
		require.Len(t, records, 3)
		assert.Equal(t, "Wang", records[0].(map[string]any)["name"])

		active := activeByPosition()
		assert.Equal(t, "Wang", active[0].Name)
		assert.Equal(t, "Chen", active[1].Name)
		assert.Equal(t, "Lin", active[2].Name)
	})

	// --- Cycle 3: Call-next serves the head ---
	t.Run("Cycle 3: Call next", func(t *testing.T) {
		resp, body := postJSON(http.MethodPost, "/api/admin/call-next", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		completed := body["completed"].(map[string]any)
		activated := body["activated"].(map[string]any)
		assert.Equal(t, "Wang", completed["name"])
		assert.Equal(t, "Chen", activated["name"])

		active := activeByPosition()
		require.Len(t, active, 2)
		assert.Equal(t, model.StatusProcessing, active[0].DisplayStatus())

		settings, err := appStore.Settings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, active[0].Number, settings.CurrentQueueNumber)

		// The completed entry sits just past the remaining actives.
		var wang model.QueueEntry
		require.NoError(t, testDB.First(&wang, ids[2]).Error)
		assert.Equal(t, model.StatusCompleted, wang.Status)
		assert.Equal(t, 3, wang.Position)
		assert.NotNil(t, wang.CompletedAt)
	})

	// --- Cycle 4: Cancel and restore ---
	t.Run("Cycle 4: Cancel and restore", func(t *testing.T) {
		resp, _ := postJSON(http.MethodPatch, fmt.Sprintf("/api/admin/entries/%d/status", ids[1]), gin.H{"status": "cancelled"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		active := activeByPosition()
		require.Len(t, active, 1)
		assert.Equal(t, "Chen", active[0].Name)

		resp, _ = postJSON(http.MethodPatch, fmt.Sprintf("/api/admin/entries/%d/status", ids[1]), gin.H{"status": "waiting"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		active = activeByPosition()
		require.Len(t, active, 2)
		// Restored entries rejoin at the tail with their original number.
		assert.Equal(t, "Lin", active[1].Name)
		assert.Equal(t, 2, active[1].Number)
	})

	// --- Cycle 5: The customer-facing views agree ---
	t.Run("Cycle 5: Status views", func(t *testing.T) {
		active := activeByPosition()

		resp, body := postJSON(http.MethodGet, fmt.Sprintf("/api/entries/%d", active[1].Number), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(2), body["position"])
		assert.Equal(t, "waiting", body["status"])
		assert.Equal(t, float64(10), body["estimatedWaitMinutes"])

		resp, body = postJSON(http.MethodGet, "/api/status", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(2), body["waitingCount"])
		assert.Equal(t, float64(1), body["completedCount"])
	})

	// --- Cycle 6: End of day purge ---
	t.Run("Cycle 6: Purge", func(t *testing.T) {
		resp, _ := postJSON(http.MethodDelete, "/api/admin/entries", nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		var count int64
		require.NoError(t, testDB.Unscoped().Model(&model.QueueEntry{}).Count(&count).Error)
		assert.Zero(t, count)

		settings, err := appStore.Settings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, settings.LastIssuedNumber)
		assert.Equal(t, 0, settings.CurrentQueueNumber)

		// The next registration starts a fresh numbering sequence.
		body := register("Liu")
		assert.Equal(t, float64(1), body["number"])
	})
}
