package keepalive

import (
	"time"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// inboundEvent is the tagged-variant the dispatcher (§4.D) consumes.
// Modeled as an interface rather than branching on concrete message
// class, per spec.md §9's "replace polymorphism-by-concrete-class with
// tagged-variant dispatch" guidance.
type inboundEvent interface {
	isInboundEvent()
}

// requestHeadEvent is a decoded request line + headers.
type requestHeadEvent struct {
	req        *http11.Request
	decoderErr error
	arrival    time.Time
}

func (requestHeadEvent) isInboundEvent() {}

// outboundKind tags the outbound object classification from §4.E,
// replacing a branch on concrete response type.
type outboundKind int

const (
	outboundResponseHead outboundKind = iota
	outboundFullResponse
	outboundContent
	outboundLastContent
	outboundOther
	outboundDetach
)

// outboundMsg is what a ResponseWriter posts to the executor. done
// receives the write outcome — the "completion token" of §5/§6 that a
// close-on-complete listener attaches to. detach is set only for
// outboundDetach, which hands back a *DetachResult instead of an error
// (see detach.go) — the seam pkg/relay/upgrade uses.
type outboundMsg struct {
	kind     outboundKind
	status   int
	header   *http11.Header
	data     []byte
	trailers *http11.Header
	done     chan error
	detach   chan *DetachResult
}
