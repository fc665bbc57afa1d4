package http11

import "testing"

func TestHasSelfDefinedLength(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header func() *Header
		want   bool
	}{
		{"1xx always self-defined", 101, func() *Header { return &Header{} }, true},
		{"204 always self-defined", 204, func() *Header { return &Header{} }, true},
		{"304 always self-defined", 304, func() *Header { return &Header{} }, true},
		{"200 with Content-Length", 200, func() *Header {
			h := &Header{}
			h.Set([]byte("Content-Length"), []byte("5"))
			return h
		}, true},
		{"200 with chunked Transfer-Encoding", 200, func() *Header {
			h := &Header{}
			h.Set([]byte("Transfer-Encoding"), []byte("chunked"))
			return h
		}, true},
		{"200 with multipart/byteranges", 200, func() *Header {
			h := &Header{}
			h.Set([]byte("Content-Type"), []byte("multipart/byteranges; boundary=x"))
			return h
		}, true},
		{"200 with multipart/form-data", 200, func() *Header {
			h := &Header{}
			h.Set([]byte("Content-Type"), []byte("multipart/form-data; boundary=x"))
			return h
		}, true},
		{"200 with nothing", 200, func() *Header { return &Header{} }, false},
		{"nil header", 200, func() *Header { return nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasSelfDefinedLength(tt.status, tt.header()); got != tt.want {
				t.Errorf("HasSelfDefinedLength(%d, ...) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestHeaderTokenContains(t *testing.T) {
	tests := []struct {
		value string
		token string
		want  bool
	}{
		{"keep-alive, Upgrade", "upgrade", true},
		{"Upgrade", "upgrade", true},
		{"keep-alive", "upgrade", false},
		{"", "upgrade", false},
		{"upgradeish", "upgrade", false},
		{"a, b, upgrade", "upgrade", true},
	}

	for _, tt := range tests {
		got := HeaderTokenContains([]byte(tt.value), tt.token)
		if got != tt.want {
			t.Errorf("HeaderTokenContains(%q, %q) = %v, want %v", tt.value, tt.token, got, tt.want)
		}
	}
}
