package keepalive

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds per-listener keep-alive handler configuration. Field
// names follow the teacher's ConnectionConfig naming (KeepAliveTimeout,
// MaxRequests) and extend it with the pipelining- and flush-related
// knobs the handler needs.
type Config struct {
	// MaxKeepAliveRequests bounds the number of requests served on one
	// connection before it is forced closed after the next response.
	// 0 means unlimited.
	MaxKeepAliveRequests int

	// IdleTimeout is carried in the configuration (DefaultConfig sets
	// 60s) but Connection does not consult it: no idle timer closes a
	// connection between requests. The only read deadline applied is
	// ReadTimeout's, which the reader re-arms before every request head.
	IdleTimeout time.Duration

	// ReadTimeout bounds how long a read for request headers may take.
	ReadTimeout time.Duration

	// LastFlushWhenNoRead, when true, has the flush coordinator defer
	// the flush of a completed response while another request waits in
	// the pipeline queue and the socket still has room, coalescing it
	// with a later flush (the next read boundary or the next completed
	// response); a socket without room is flushed at once (§4.F). When
	// false every response is flushed immediately on completion.
	LastFlushWhenNoRead bool

	// Logger receives structured per-connection events. Defaults to
	// logrus.StandardLogger() if nil.
	Logger *logrus.Logger
}

// DefaultConfig returns the recommended configuration for HTTP/1.1
// keep-alive serving, mirroring the teacher's DefaultConnectionConfig.
func DefaultConfig() *Config {
	return &Config{
		MaxKeepAliveRequests: 0,
		IdleTimeout:          60 * time.Second,
		ReadTimeout:          30 * time.Second,
		LastFlushWhenNoRead:  false,
		Logger:               logrus.StandardLogger(),
	}
}
