package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func postWithKey(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	mw := Idempotency(newRedis(t), DefaultIdempotencyTTL, nil)
	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postWithKey("/api/v1/carts/1/checkout", "", `{}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if called {
		t.Fatal("handler should not run without idempotency key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	mw := Idempotency(newRedis(t), CriticalIdempotencyTTL, nil)
	calls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"status":"processing"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postWithKey("/api/v1/carts/1/checkout", "abc", `{"payment_method":"cheque"}`))
	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, postWithKey("/api/v1/carts/1/checkout", "abc", `{"payment_method":"cheque"}`))

	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" || replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("unexpected replay headers %v", replay.Header())
	}
	if strings.TrimSpace(replay.Body.String()) != `{"data":{"status":"processing"}}` {
		t.Fatalf("expected stored body got %s", replay.Body.String())
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	mw := Idempotency(newRedis(t), DefaultIdempotencyTTL, nil)
	calls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postWithKey("/x", "retry", `{}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postWithKey("/x", "retry", `{}`))

	if calls != 2 || second.Code != http.StatusOK {
		t.Fatalf("expected retry to reach handler, calls=%d code=%d", calls, second.Code)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newRedis(t), DefaultIdempotencyTTL, nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	handler.ServeHTTP(httptest.NewRecorder(), postWithKey("/x", "xyz", `{"a":1}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postWithKey("/x", "xyz", `{"a":2}`))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}
