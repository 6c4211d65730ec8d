package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"freelancer_ops_backend/platform/config"
)

func TestSendMessagePostsToGateway(t *testing.T) {
	var got sendMessageRequest
	var auth, device string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send/message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		device = r.Header.Get("X-Device-Id")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&config.Config{WhatsAppURL: server.URL + "/", WhatsAppKey: "user:pass", WhatsAppDeviceID: "dev-1"}, nil)
	if err := client.SendMessage(context.Background(), "+31612345678", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if got.Phone != "31612345678" || got.Message != "hello" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if auth != "Basic dXNlcjpwYXNz" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if device != "dev-1" {
		t.Fatalf("unexpected device header %q", device)
	}
}

func TestSendMessageSurfacesGatewayErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "device offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(&config.Config{WhatsAppURL: server.URL}, nil)
	err := client.SendMessage(context.Background(), "+31612345678", "hello")
	if err == nil {
		t.Fatal("expected error from failing gateway")
	}
}

func TestNilClientIsNotConfigured(t *testing.T) {
	client := NewClient(&config.Config{}, nil)
	if client.Configured() {
		t.Fatal("expected client without url to be unconfigured")
	}
	if err := client.SendMessage(context.Background(), "+31612345678", "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendMessageUsesGatewayEnvelopeMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"INVALID_JID","message":"phone is not on whatsapp"}`))
	}))
	defer server.Close()

	client := NewClient(&config.Config{WhatsAppURL: server.URL}, nil)
	err := client.SendMessage(context.Background(), "+31612345678", "hello")
	if err == nil || !strings.Contains(err.Error(), "phone is not on whatsapp") {
		t.Fatalf("expected gateway message in error, got %v", err)
	}
}

func TestBasicAuthKeepsPreformattedHeader(t *testing.T) {
	if got := basicAuth("Basic abc"); got != "Basic abc" {
		t.Fatalf("expected header untouched, got %q", got)
	}
	if got := basicAuth(""); got != "" {
		t.Fatalf("expected empty header for empty key, got %q", got)
	}
}
