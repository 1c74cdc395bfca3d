package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("missing accept header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issuer":"https://example.test/"}`))
	}))
	defer srv.Close()

	var out struct {
		Issuer string `json:"issuer"`
	}
	c := NewHTTPClient(srv.Client())
	if err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON returned error: %v", err)
	}
	if out.Issuer != "https://example.test/" {
		t.Fatalf("decoded body mismatch: %+v", out)
	}
}

func TestGetJSONRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.Client())
	err := c.GetJSON(context.Background(), srv.URL, &struct{}{})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestGetJSONDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.Client())
	if err := c.GetJSON(context.Background(), srv.URL, &struct{}{}); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPostJSONSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if in["grant"] != "device_code" {
			t.Errorf("request body mismatch: %v", in)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	c := NewHTTPClient(srv.Client())
	if err := c.PostJSON(context.Background(), srv.URL, map[string]string{"grant": "device_code"}, &out); err != nil {
		t.Fatalf("PostJSON returned error: %v", err)
	}
	if !out.OK {
		t.Fatalf("response not decoded: %+v", out)
	}
}

func TestGetJSONContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewHTTPClient(srv.Client())
	if err := c.GetJSON(ctx, srv.URL, &struct{}{}); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
