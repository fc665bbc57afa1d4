package keepalive

import "sync"

// responseWriterPool reuses *ResponseWriter across requests on a
// connection, mirroring the teacher's http11.GetResponseWriter/
// PutResponseWriter pooling for the same object shape one layer up.
var responseWriterPool = sync.Pool{
	New: func() interface{} { return &ResponseWriter{} },
}

func acquireResponseWriter(c *Connection) *ResponseWriter {
	rw := responseWriterPool.Get().(*ResponseWriter)
	rw.reset(c)
	return rw
}

func releaseResponseWriter(rw *ResponseWriter) {
	rw.reset(nil)
	responseWriterPool.Put(rw)
}
