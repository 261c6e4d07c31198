package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quizroom/handlers"
	"quizroom/models"
	"quizroom/realtime"
	"quizroom/routes"
	"quizroom/services"
	"quizroom/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	roomStore := store.NewRedisRoomStore(client, time.Hour)
	roomService := services.NewRoomService(roomStore, nil)
	notifier := realtime.NewNotifier(client)
	hub := realtime.NewHub(client)

	router := gin.New()
	routes.SetupRoutes(router, handlers.NewRoomHandler(roomService, nil, notifier), hub)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	fields := map[string]json.RawMessage{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fields))
	}
	return w, fields
}

func decodeRoom(t *testing.T, raw json.RawMessage) models.Room {
	t.Helper()
	var room models.Room
	require.NoError(t, json.Unmarshal(raw, &room))
	return room
}

func decodeString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestRoomLifecycleScenario(t *testing.T) {
	router := newTestRouter(t)

	// Create room for quiz Q1 with host Alice.
	w, fields := doJSON(t, router, http.MethodPost, "/rooms", gin.H{
		"quizId":   "Q1",
		"hostName": "Alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	room := decodeRoom(t, fields["room"])
	hostID := decodeString(t, fields["participantId"])
	require.Len(t, room.Participants, 1)
	assert.True(t, room.Participants[0].IsHost)
	assert.Equal(t, models.StatusWaiting, room.Status)
	code := room.Code

	// The read endpoint is case-insensitive on codes.
	w, _ = doJSON(t, router, http.MethodGet, "/rooms/"+strings.ToLower(code), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Bob joins.
	w, fields = doJSON(t, router, http.MethodPost, "/rooms/"+code+"/join", gin.H{
		"playerName": "Bob",
	})
	require.Equal(t, http.StatusOK, w.Code)
	bobID := decodeString(t, fields["participantId"])
	joined := decodeRoom(t, fields["room"])
	require.Len(t, joined.Participants, 2)
	assert.Equal(t, "Bob", joined.Participants[1].Name)

	// Only the host can start.
	w, _ = doJSON(t, router, http.MethodPost, "/rooms/"+code+"/start", gin.H{
		"participantId": bobID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, fields = doJSON(t, router, http.MethodPost, "/rooms/"+code+"/start", gin.H{
		"participantId": hostID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", decodeString(t, fields["status"]))

	// Starting twice is a precondition failure.
	w, _ = doJSON(t, router, http.MethodPost, "/rooms/"+code+"/start", gin.H{
		"participantId": hostID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Joining an active room reads as not found.
	w, _ = doJSON(t, router, http.MethodPost, "/rooms/"+code+"/join", gin.H{
		"playerName": "Carol",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Alice submits; Bob has not finished yet.
	w, fields = doJSON(t, router, http.MethodPost, "/rooms/"+code+"/submit", gin.H{
		"participantId":  hostID,
		"score":          80,
		"correctAnswers": 8,
		"totalQuestions": 10,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", string(fields["allFinished"]))

	// Bob submits; the room completes.
	w, fields = doJSON(t, router, http.MethodPost, "/rooms/"+code+"/submit", gin.H{
		"participantId":  bobID,
		"score":          60,
		"correctAnswers": 6,
		"totalQuestions": 10,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", string(fields["allFinished"]))

	w, _ = doJSON(t, router, http.MethodGet, "/rooms/"+code, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var final models.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &final))
	assert.Equal(t, models.StatusCompleted, final.Status)
	require.NotNil(t, final.CompletedAt)

	// Leaving is tolerated post-completion and idempotent.
	for i := 0; i < 2; i++ {
		w, fields = doJSON(t, router, http.MethodPost, "/rooms/"+code+"/leave", gin.H{
			"participantId": bobID,
		})
		require.Equal(t, http.StatusOK, w.Code, "leave attempt %d", i+1)
		assert.Equal(t, "true", string(fields["success"]))
	}
}

func TestValidationAndNotFoundStatuses(t *testing.T) {
	router := newTestRouter(t)

	// Missing fields bind-fail with 400.
	w, _ := doJSON(t, router, http.MethodPost, "/rooms", gin.H{"quizId": "Q1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/rooms", gin.H{"hostName": "Alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodGet, "/rooms/NOSUCH", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/rooms/NOSUCH/join", gin.H{"playerName": "Bob"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/rooms/NOSUCH/join", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/rooms/NOSUCH/submit", gin.H{
		"participantId": "p-1",
		"score":         10,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/rooms/NOSUCH/start", gin.H{"participantId": "p-1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	w, fields := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeString(t, fields["status"]))
}
