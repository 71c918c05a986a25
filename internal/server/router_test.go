package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tankchat/internal/config"
	"tankchat/internal/db"
	"tankchat/internal/service"
	"tankchat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRouter(t *testing.T) (*gin.Engine, *gorm.DB, config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Config{
		Port:               "0",
		CredentialSecret:   "test-secret",
		Env:                "dev",
		PlatformIdentity:   "platform",
		RetentionSeconds:   60,
		SweepPeriodSeconds: 60,
	}
	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return SetupRouter(cfg, gdb, hub), gdb, cfg
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	engine, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMintIdentity(t *testing.T) {
	engine, _, _ := testRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/identity", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Identity   string `json:"identity"`
		Credential string `json:"credential"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Identity == "" || resp.Credential == "" {
		t.Errorf("mint response = %+v", resp)
	}
}

func TestAuthedRoutes_RequireCredential(t *testing.T) {
	engine, _, _ := testRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credential, got %d", w.Code)
	}
}

func TestRoomAndMessageFlow(t *testing.T) {
	engine, gdb, _ := testRouter(t)

	// Mint a credential.
	w := doJSON(t, engine, http.MethodPost, "/api/v1/identity", "", nil)
	var minted struct {
		Identity   string `json:"identity"`
		Credential string `json:"credential"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &minted); err != nil {
		t.Fatalf("decode mint: %v", err)
	}

	// Before the first connect the identity is unknown to every operation.
	if w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms", minted.Credential, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("create-room before connect: expected 401, got %d", w.Code)
	}

	// Session establishment is normally driven by the websocket upgrade; call
	// the presence layer directly to simulate it.
	if _, err := service.NewPresenceService(gdb).Connect(service.Call{Identity: minted.Identity, Now: time.Now()}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Create a room.
	w = doJSON(t, engine, http.MethodPost, "/api/v1/rooms", minted.Credential, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create-room: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var room struct {
		ID  uint64 `json:"id"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &room); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	if len(room.Key) != 8 {
		t.Errorf("room key = %q, want 8 chars", room.Key)
	}

	// Joining a bogus key is a 404.
	if w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms/join", minted.Credential, map[string]string{"key": "NOPE0000"}); w.Code != http.StatusNotFound {
		t.Errorf("join bogus key: expected 404, got %d", w.Code)
	}

	// Set a display name; empty is rejected.
	if w := doJSON(t, engine, http.MethodPost, "/api/v1/profile/name", minted.Credential, map[string]string{"name": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty name: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, engine, http.MethodPost, "/api/v1/profile/name", minted.Credential, map[string]string{"name": "Ace"}); w.Code != http.StatusNoContent {
		t.Errorf("set name: expected 204, got %d", w.Code)
	}

	// Post and read back a message.
	w = doJSON(t, engine, http.MethodPost, "/api/v1/messages", minted.Credential, map[string]interface{}{"kind": "position", "data": []float64{3, 4}})
	if w.Code != http.StatusOK {
		t.Fatalf("send message: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodGet, "/api/v1/messages?room="+jsonNumber(room.ID), minted.Credential, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list messages: expected 200, got %d", w.Code)
	}
	var listed struct {
		Messages []struct {
			Kind string    `json:"kind"`
			Data []float64 `json:"data"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(listed.Messages) != 1 || listed.Messages[0].Kind != "position" || len(listed.Messages[0].Data) != 2 {
		t.Errorf("listed = %+v", listed.Messages)
	}

	// The user table is public and reflects the name change.
	w = doJSON(t, engine, http.MethodGet, "/api/v1/users", minted.Credential, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", w.Code)
	}
	var users struct {
		Users []struct {
			Identity string  `json:"identity"`
			Name     *string `json:"name"`
		} `json:"users"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users.Users) != 1 || users.Users[0].Name == nil || *users.Users[0].Name != "Ace" {
		t.Errorf("users = %+v", users.Users)
	}
}

func jsonNumber(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
