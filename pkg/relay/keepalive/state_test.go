package keepalive

import (
	"testing"

	"github.com/yourusername/relay/pkg/relay/http11"
)

func newTestRequest(t *testing.T, major, minor int, connectionHeader string) *http11.Request {
	t.Helper()
	req := http11.GetRequest()
	req.ProtoMajor = major
	req.ProtoMinor = minor
	if connectionHeader != "" {
		if err := req.Header.Set([]byte("Connection"), []byte(connectionHeader)); err != nil {
			t.Fatalf("set Connection header: %v", err)
		}
	}
	return req
}

func TestNegotiateKeepAlive(t *testing.T) {
	tests := []struct {
		name             string
		major, minor     int
		connectionHeader string
		want             bool
	}{
		{"HTTP/1.1 no header defaults persistent", 1, 1, "", true},
		{"HTTP/1.1 explicit close", 1, 1, "close", false},
		{"HTTP/1.1 explicit keep-alive is still persistent", 1, 1, "keep-alive", true},
		{"HTTP/1.0 no header defaults non-persistent", 1, 0, "", false},
		{"HTTP/1.0 explicit keep-alive", 1, 0, "keep-alive", true},
		{"HTTP/1.0 explicit close", 1, 0, "close", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newTestRequest(t, tt.major, tt.minor, tt.connectionHeader)
			defer http11.PutRequest(req)
			if got := negotiateKeepAlive(req); got != tt.want {
				t.Errorf("negotiateKeepAlive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExternalState(t *testing.T) {
	s := newConnState(nil, false)

	if got := s.externalState(false); got != StateIdle {
		t.Errorf("fresh state = %v, want StateIdle", got)
	}

	s.pendingResponses = 1
	if got := s.externalState(false); got != StateServing {
		t.Errorf("with a pending response = %v, want StateServing", got)
	}
	s.pendingResponses = 0

	s.pipelined.push(&requestHolder{})
	if got := s.externalState(false); got != StateBuffering {
		t.Errorf("with a buffered request = %v, want StateBuffering", got)
	}

	if got := s.externalState(true); got != StateClosing {
		t.Errorf("closing=true = %v, want StateClosing, regardless of other fields", got)
	}
}
