// Package compression is the compress/compressionOptions domain object
// passed through to the per-request operation. The core in
// pkg/relay/keepalive only ever carries this policy object alongside a
// request/response pair — it never compresses a byte itself, and
// nothing here reaches back into keepalive.
package compression

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	kflate "github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// Encoding identifies a negotiated content-coding (RFC 7231 §5.3.4).
type Encoding string

const (
	EncodingIdentity Encoding = "identity"
	EncodingGzip     Encoding = "gzip"
	EncodingDeflate  Encoding = "deflate"
	EncodingBrotli   Encoding = "br"
)

// ErrUnsupportedEncoding is returned by NewWriter for an Encoding this
// package doesn't implement a writer for.
var ErrUnsupportedEncoding = errors.New("compression: unsupported encoding")

// Options is the per-request (or per-server-default) compression
// policy — the object the core carries through untouched.
type Options struct {
	// Enabled turns compression negotiation on at all.
	Enabled bool

	// MinSize is the smallest response body, in bytes, worth
	// compressing. Responses below this are left identity-encoded.
	MinSize int

	// Level is the compression level passed to the gzip and deflate
	// constructors (gzip.DefaultCompression-style semantics); for brotli,
	// which uses its own 0-11 scale, it is mapped through LevelFor.
	Level int

	// Allowed restricts negotiation to this set, in preference order.
	// Nil means all of EncodingBrotli, EncodingGzip, EncodingDeflate.
	Allowed []Encoding
}

// DefaultOptions returns the recommended policy: compression on, a
// 1400-byte floor (roughly one Ethernet MTU — smaller bodies aren't
// worth the CPU), gzip.DefaultCompression, and brotli preferred over
// gzip preferred over deflate when the client advertises all three.
func DefaultOptions() *Options {
	return &Options{
		Enabled: true,
		MinSize: 1400,
		Level:   gzip.DefaultCompression,
		Allowed: []Encoding{EncodingBrotli, EncodingGzip, EncodingDeflate},
	}
}

// LevelFor maps Options.Level (gzip's -1..9 scale) onto brotli's 0..11
// scale, since the two libraries don't share a level convention.
func (o *Options) LevelFor(enc Encoding) int {
	if enc != EncodingBrotli {
		return o.Level
	}
	switch {
	case o.Level < 0:
		return 5
	case o.Level > 9:
		return 11
	default:
		return (o.Level * 11) / 9
	}
}

// Negotiate picks the best encoding from an Accept-Encoding header
// value given this policy, returning EncodingIdentity if compression
// is disabled, the header is absent/empty, or nothing overlaps.
func (o *Options) Negotiate(acceptEncoding string) Encoding {
	if !o.Enabled || acceptEncoding == "" {
		return EncodingIdentity
	}

	accepted := parseAcceptEncoding(acceptEncoding)
	allowed := o.Allowed
	if len(allowed) == 0 {
		allowed = []Encoding{EncodingBrotli, EncodingGzip, EncodingDeflate}
	}

	for _, enc := range allowed {
		if q, ok := accepted[enc]; ok && q > 0 {
			return enc
		}
	}
	return EncodingIdentity
}

// NewWriter wraps dst with a compressing io.WriteCloser for enc.
// Closing it flushes and finalizes the compressed stream; it does not
// close dst. EncodingIdentity returns dst wrapped in a no-op Closer.
func (o *Options) NewWriter(dst io.Writer, enc Encoding) (io.WriteCloser, error) {
	switch enc {
	case EncodingIdentity, "":
		return nopCloser{dst}, nil
	case EncodingGzip:
		return gzip.NewWriterLevel(dst, o.Level)
	case EncodingDeflate:
		return kflate.NewWriter(dst, o.Level)
	case EncodingBrotli:
		return brotli.NewWriterLevel(dst, o.LevelFor(EncodingBrotli)), nil
	default:
		return nil, ErrUnsupportedEncoding
	}
}

// ShouldCompress applies the MinSize floor to a known (or estimated)
// response body length. EncodingIdentity always returns false. For any
// other encoding a negative length (unknown, e.g. streaming) returns
// true — size-based skipping only applies when the full length is
// known up front.
func (o *Options) ShouldCompress(enc Encoding, contentLength int) bool {
	if enc == EncodingIdentity {
		return false
	}
	if contentLength < 0 {
		return true
	}
	return contentLength >= o.MinSize
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func parseAcceptEncoding(header string) map[Encoding]float64 {
	out := make(map[Encoding]float64, 4)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, q := part, 1.0
		if idx := strings.Index(part, ";"); idx >= 0 {
			name = strings.TrimSpace(part[:idx])
			if qv, ok := parseQValue(part[idx+1:]); ok {
				q = qv
			}
		}
		out[Encoding(strings.ToLower(name))] = q
	}
	return out
}

func parseQValue(params string) (float64, bool) {
	for _, p := range strings.Split(params, ";") {
		p = strings.TrimSpace(p)
		if !strings.HasPrefix(p, "q=") {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimPrefix(p, "q="), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
