package upgrade

import (
	"testing"

	"github.com/yourusername/relay/pkg/relay/http11"
	"github.com/yourusername/relay/pkg/relay/keepalive"
)

func newUpgradeRequest(t *testing.T, mutate func(h *http11.Header)) *keepalive.Request {
	t.Helper()
	inner := http11.GetRequest()
	t.Cleanup(func() { http11.PutRequest(inner) })
	if mutate != nil {
		mutate(&inner.Header)
	}
	return keepalive.NewRequest(inner)
}

func TestIsUpgradeRequestAccepts(t *testing.T) {
	req := newUpgradeRequest(t, func(h *http11.Header) {
		h.Set([]byte("Connection"), []byte("keep-alive, Upgrade"))
		h.Set([]byte("Upgrade"), []byte("websocket"))
		h.Set([]byte("Sec-WebSocket-Key"), []byte("dGhlIHNhbXBsZSBub25jZQ=="))
		h.Set([]byte("Sec-WebSocket-Version"), []byte("13"))
	})

	if !IsUpgradeRequest(req) {
		t.Fatal("expected a well-formed handshake to be recognized")
	}
}

func TestIsUpgradeRequestRejectsMissingPieces(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *http11.Header)
	}{
		{"no headers at all", func(h *http11.Header) {}},
		{"missing Upgrade token", func(h *http11.Header) {
			h.Set([]byte("Connection"), []byte("Upgrade"))
			h.Set([]byte("Sec-WebSocket-Key"), []byte("x"))
			h.Set([]byte("Sec-WebSocket-Version"), []byte("13"))
		}},
		{"missing Sec-WebSocket-Key", func(h *http11.Header) {
			h.Set([]byte("Connection"), []byte("Upgrade"))
			h.Set([]byte("Upgrade"), []byte("websocket"))
			h.Set([]byte("Sec-WebSocket-Version"), []byte("13"))
		}},
		{"wrong Sec-WebSocket-Version", func(h *http11.Header) {
			h.Set([]byte("Connection"), []byte("Upgrade"))
			h.Set([]byte("Upgrade"), []byte("websocket"))
			h.Set([]byte("Sec-WebSocket-Key"), []byte("x"))
			h.Set([]byte("Sec-WebSocket-Version"), []byte("8"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newUpgradeRequest(t, tt.mutate)
			if IsUpgradeRequest(req) {
				t.Fatal("expected this request to be rejected")
			}
		})
	}
}
