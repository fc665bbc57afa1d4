package compression

import (
	"bytes"
	"io"
	"testing"
)

func TestNegotiatePrefersConfiguredOrder(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name   string
		accept string
		want   Encoding
	}{
		{"all three, brotli preferred", "gzip, deflate, br", EncodingBrotli},
		{"gzip only", "gzip", EncodingGzip},
		{"nothing overlaps", "compress", EncodingIdentity},
		{"empty header", "", EncodingIdentity},
		{"explicit zero q drops it", "br;q=0, gzip", EncodingGzip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := opts.Negotiate(tt.accept); got != tt.want {
				t.Errorf("Negotiate(%q) = %q, want %q", tt.accept, got, tt.want)
			}
		})
	}
}

func TestNegotiateDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.Enabled = false
	if got := opts.Negotiate("gzip, br"); got != EncodingIdentity {
		t.Errorf("Negotiate with Enabled=false = %q, want identity", got)
	}
}

func TestShouldCompress(t *testing.T) {
	opts := &Options{Enabled: true, MinSize: 1400}

	if opts.ShouldCompress(EncodingIdentity, 10000) {
		t.Error("identity encoding should never compress")
	}
	if opts.ShouldCompress(EncodingGzip, 100) {
		t.Error("body under MinSize should not compress")
	}
	if !opts.ShouldCompress(EncodingGzip, 2000) {
		t.Error("body over MinSize should compress")
	}
	if !opts.ShouldCompress(EncodingGzip, -1) {
		t.Error("unknown length should compress")
	}
}

func TestNewWriterRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 64)

	for _, enc := range []Encoding{EncodingGzip, EncodingDeflate, EncodingBrotli, EncodingIdentity} {
		enc := enc
		t.Run(string(enc), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := opts.NewWriter(&buf, enc)
			if err != nil {
				t.Fatalf("NewWriter(%q): %v", enc, err)
			}
			if _, err := w.Write(payload); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if enc == EncodingIdentity && !bytes.Equal(buf.Bytes(), payload) {
				t.Fatal("identity writer altered the payload")
			}
		})
	}
}

func TestNewWriterUnsupportedEncoding(t *testing.T) {
	opts := DefaultOptions()
	if _, err := opts.NewWriter(io.Discard, Encoding("zstd")); err != ErrUnsupportedEncoding {
		t.Errorf("NewWriter(zstd) error = %v, want ErrUnsupportedEncoding", err)
	}
}
