package http11

import "bytes"

var (
	transferEncodingChunked  = []byte("chunked")
	contentTypeMultipartByte = []byte("multipart/")
)

// HasSelfDefinedLength reports whether a response carries its own
// framing — a Content-Length, chunked Transfer-Encoding, or any
// multipart/* Content-Type — per RFC 7230 §3.3.3's message length
// rules, plus the status-code short-circuits of §3.3.1/§3.3.2
// (1xx, 204, and 304 never carry a body regardless of header content).
//
// This is the framing predicate the outbound shaper consults when deciding
// whether a response needs the connection closed to signal its end
// (§4.C): a response without a self-defined length on a keep-alive
// connection is ambiguous and must close the connection after writing.
func HasSelfDefinedLength(status int, header *Header) bool {
	if status >= 100 && status < 200 {
		return true
	}
	if status == 204 || status == 304 {
		return true
	}

	if header == nil {
		return false
	}

	if header.Has(headerContentLength) {
		return true
	}

	if te := header.Get(headerTransferEncoding); te != nil {
		if bytes.Contains(bytes.ToLower(te), transferEncodingChunked) {
			return true
		}
	}

	if ct := header.Get(headerContentType); ct != nil {
		if bytes.HasPrefix(bytes.ToLower(ct), contentTypeMultipartByte) {
			return true
		}
	}

	return false
}

// HeaderTokenContains reports whether value is a comma-separated
// header field (e.g. "Connection: keep-alive, Upgrade") containing
// token, compared case-insensitively — the shape RFC 7230 §7 defines
// for list-based header fields like Connection and Upgrade.
func HeaderTokenContains(value []byte, token string) bool {
	for _, part := range bytes.Split(value, []byte(",")) {
		part = bytes.TrimSpace(part)
		if len(part) != len(token) {
			continue
		}
		if bytesEqualCaseInsensitive(part, []byte(token)) {
			return true
		}
	}
	return false
}
