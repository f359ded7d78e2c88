package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

type captureRT struct {
	req  *http.Request
	body []byte
}

func (c *captureRT) RoundTrip(req *http.Request) (*http.Response, error) {
	c.req = req
	if req.Body != nil {
		c.body, _ = io.ReadAll(req.Body)
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("")), Request: req}, nil
}

func TestCloudflareRTStripsTelemetryAndCompresses(t *testing.T) {
	inner := &captureRT{}
	rt := &cloudflareRT{inner: inner}

	payload := bytes.Repeat([]byte(`{"role":"user","content":"hello"}`), 200)
	req, err := http.NewRequest(http.MethodPost, "https://api.example.com/v1/messages", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Stainless-Lang", "go")
	req.Header.Set("Authorization", "Bearer k")

	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if inner.req.Header.Get("X-Stainless-Lang") != "" {
		t.Error("telemetry header not stripped")
	}
	if inner.req.Header.Get("Authorization") == "" {
		t.Error("authorization header dropped")
	}
	if inner.req.Header.Get("Content-Encoding") != "zstd" {
		t.Fatalf("expected zstd encoding, got %q", inner.req.Header.Get("Content-Encoding"))
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	plain, err := dec.DecodeAll(inner.body, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(plain, payload) {
		t.Error("decompressed body differs from original")
	}
	if req.Header.Get("X-Stainless-Lang") == "" {
		t.Error("caller's request was mutated")
	}
}

func TestCloudflareRTLeavesSmallBodies(t *testing.T) {
	inner := &captureRT{}
	rt := &cloudflareRT{inner: inner}
	req, _ := http.NewRequest(http.MethodPost, "https://api.example.com", strings.NewReader("small"))
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatal(err)
	}
	if inner.req.Header.Get("Content-Encoding") != "" || string(inner.body) != "small" {
		t.Errorf("small body altered: enc=%q body=%q", inner.req.Header.Get("Content-Encoding"), inner.body)
	}
}

func TestProbeSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/login":
			w.WriteHeader(http.StatusOK)
		case strings.Contains(r.Header.Get("Cookie"), "sessionKey=good"):
			w.WriteHeader(http.StatusOK)
		default:
			http.Redirect(w, r, "/login", http.StatusFound)
		}
	}))
	defer srv.Close()

	noFollow := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	ok, err := ProbeSession(context.Background(), noFollow, srv.URL+"/chats", "sessionKey=good")
	if err != nil {
		t.Fatalf("ProbeSession: %v", err)
	}
	if !ok.Authenticated || ok.StatusCode != http.StatusOK {
		t.Errorf("expected authenticated probe, got %+v", ok)
	}

	stale, err := ProbeSession(context.Background(), noFollow, srv.URL+"/chats", "sessionKey=old")
	if err != nil {
		t.Fatalf("ProbeSession: %v", err)
	}
	if stale.Authenticated || stale.StatusCode != http.StatusFound || stale.Location != "/login" {
		t.Errorf("expected redirect to login, got %+v", stale)
	}

	followed, err := ProbeSession(context.Background(), srv.Client(), srv.URL+"/chats", "")
	if err != nil {
		t.Fatalf("ProbeSession: %v", err)
	}
	if followed.Authenticated {
		t.Errorf("landing on the login page counted as authenticated: %+v", followed)
	}
}
