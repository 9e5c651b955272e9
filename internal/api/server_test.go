package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/HaoyangGuo/oolong/internal/auth"
	"github.com/HaoyangGuo/oolong/internal/chat"
	"github.com/HaoyangGuo/oolong/internal/config"
	"github.com/HaoyangGuo/oolong/internal/gateway"
	"github.com/HaoyangGuo/oolong/internal/models"
	"github.com/HaoyangGuo/oolong/internal/store"
)

type fakeObjects struct{}

func (fakeObjects) Upload(_ context.Context, filename, _ string, _ []byte) (string, string, error) {
	return "https://files.test/" + filename, "handle-" + filename, nil
}

func (fakeObjects) Delete(context.Context, string) error { return nil }

type testServer struct {
	app   *fiber.App
	store *store.Store
	key   *rsa.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	st, err := store.New(db)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	verifier := auth.NewKeyVerifier(&key.PublicKey)

	log := zap.NewNop().Sugar()
	hub := gateway.NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	objects := fakeObjects{}
	authorizer := chat.NewAuthorizer(st)
	app := NewServer(Deps{
		Config:   &config.Config{},
		Store:    st,
		Chat:     chat.NewService(st, authorizer, objects, log),
		Auth:     authorizer,
		Gateway:  gateway.New(hub, verifier, st.Profiles, nil, log),
		Objects:  objects,
		Verifier: verifier,
		Log:      log,
	})
	return &testServer{app: app, store: st, key: key}
}

func (ts *testServer) token(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	}).SignedString(ts.key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func (ts *testServer) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := ts.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func formBody(t *testing.T, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("failed to build form: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to build form: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func socketRequest(target, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target+"?token="+token, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return req
}

// REST provisions a first-seen identity; the socket handshake refuses it. The
// two paths share the verifier but not the provisioning behavior.
func TestServer_ProvisioningAsymmetry(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user_fresh", time.Hour)

	resp := ts.do(t, socketRequest("/socket", token))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("expected 401 for an unprovisioned socket, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = ts.do(t, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 from REST, got %d", resp.StatusCode)
	}
	profile := decodeJSON[models.Profile](t, resp)
	if profile.Username != "user#resh" {
		t.Errorf("expected placeholder username, got %q", profile.Username)
	}
}

func TestServer_RejectsExpiredToken(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user_alice", -time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if resp := ts.do(t, req); resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("expected 401 from REST, got %d", resp.StatusCode)
	}
	if resp := ts.do(t, socketRequest("/socket", token)); resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("expected 401 from the socket handshake, got %d", resp.StatusCode)
	}
}

func TestServer_MessageEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	alice, err := ts.store.Profiles.FindOrCreate(ctx, "user_alice")
	if err != nil {
		t.Fatalf("failed to seed alice: %v", err)
	}
	bob, err := ts.store.Profiles.FindOrCreate(ctx, "user_bob")
	if err != nil {
		t.Fatalf("failed to seed bob: %v", err)
	}
	srv, err := ts.store.Servers.Create(ctx, alice.ID, "hq", "", "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	if _, err := ts.store.Servers.JoinByInvite(ctx, bob.ID, srv.InviteCode); err != nil {
		t.Fatalf("failed to join bob: %v", err)
	}
	full, err := ts.store.Servers.GetForMember(ctx, srv.ID, alice.ID)
	if err != nil {
		t.Fatalf("failed to load server: %v", err)
	}
	channel := full.Channels[0]

	aliceToken := ts.token(t, "user_alice", time.Hour)
	bobToken := ts.token(t, "user_bob", time.Hour)
	target := "/api/messages/?serverId=" + srv.ID + "&channelId=" + channel.ID

	var posted models.Message
	t.Run("post", func(t *testing.T) {
		body, contentType := formBody(t, map[string]string{"content": "hello"})
		req := httptest.NewRequest(http.MethodPost, target, body)
		req.Header.Set("Authorization", "Bearer "+aliceToken)
		req.Header.Set("Content-Type", contentType)
		resp := ts.do(t, req)
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		posted = decodeJSON[models.Message](t, resp)
		if posted.Content != "hello" || posted.Member.Profile.ID != alice.ID {
			t.Errorf("unexpected message %+v", posted)
		}
	})

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+bobToken)
		resp := ts.do(t, req)
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		page := decodeJSON[store.MessagePage](t, resp)
		if len(page.Messages) != 1 || page.Messages[0].ID != posted.ID {
			t.Errorf("expected the posted message, got %+v", page.Messages)
		}
	})

	t.Run("missing channel id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/messages/?serverId="+srv.ID, nil)
		req.Header.Set("Authorization", "Bearer "+aliceToken)
		if resp := ts.do(t, req); resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	deleteReq := func(token string) *http.Request {
		body, _ := json.Marshal(map[string]string{"serverId": srv.ID, "channelId": channel.ID})
		req := httptest.NewRequest(http.MethodDelete, "/api/messages/"+posted.ID, bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		return req
	}

	t.Run("guest cannot delete another's", func(t *testing.T) {
		if resp := ts.do(t, deleteReq(bobToken)); resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("author deletes", func(t *testing.T) {
		resp := ts.do(t, deleteReq(aliceToken))
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		scrubbed := decodeJSON[models.Message](t, resp)
		if !scrubbed.Deleted || scrubbed.Content != models.DeletedPlaceholder {
			t.Errorf("expected scrubbed message, got %+v", scrubbed)
		}
	})

	t.Run("repeat delete is 404", func(t *testing.T) {
		if resp := ts.do(t, deleteReq(aliceToken)); resp.StatusCode != fiber.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}
