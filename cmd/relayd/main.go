// Command relayd is a minimal demo binary wiring pkg/relay/server,
// pkg/relay/keepalive, pkg/relay/compression, pkg/relay/upgrade, and
// pkg/relay/metrics into a runnable HTTP/1.x server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/relay/pkg/relay/compression"
	"github.com/yourusername/relay/pkg/relay/keepalive"
	"github.com/yourusername/relay/pkg/relay/metrics"
	"github.com/yourusername/relay/pkg/relay/server"
	"github.com/yourusername/relay/pkg/relay/upgrade"
)

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	maxKeepAliveRequests := flag.Int("max-keepalive-requests", 0, "0 means unlimited")
	flag.Parse()

	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.JSONFormatter{})

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	compressionOpts := compression.DefaultOptions()
	upgrader := upgrade.NewUpgrader(4096, 4096, nil)

	handler := buildHandler(compressionOpts, upgrader, logger)

	kaConfig := keepalive.DefaultConfig()
	kaConfig.MaxKeepAliveRequests = *maxKeepAliveRequests
	kaConfig.Logger = logger

	srvConfig := server.DefaultConfig()
	srvConfig.Addr = *addr
	srvConfig.Keepalive = kaConfig
	srvConfig.Logger = logger

	srv := server.New(srvConfig, handler, collector)

	go serveMetrics(*metricsAddr, logger)

	go func() {
		logger.WithField("addr", *addr).Info("relayd: listening")
		if err := srv.ListenAndServe(); err != nil {
			logger.WithError(err).Error("relayd: serve exited")
		}
	}()

	waitForShutdown(srv, logger)
}

func buildHandler(copts *compression.Options, up *upgrade.Upgrader, logger *logrus.Logger) keepalive.Handler {
	return func(op *keepalive.Operation, req *keepalive.Request, w *keepalive.ResponseWriter) error {
		if req.Path() == "/ws" && upgrade.IsUpgradeRequest(req) {
			conn, err := up.Accept(req, w, nil)
			if err != nil {
				return err
			}
			go echoWebSocket(conn, logger)
			return nil
		}

		body := []byte("hello from relay\n")
		enc := copts.Negotiate(req.Header().GetString([]byte("Accept-Encoding")))

		if !copts.ShouldCompress(enc, len(body)) {
			return w.WriteFull(http.StatusOK, body)
		}

		_ = w.Header().Set([]byte("Content-Encoding"), []byte(enc))
		cw, err := copts.NewWriter(responseWriterAdapter{w}, enc)
		if err != nil {
			return w.WriteFull(http.StatusInternalServerError, []byte(err.Error()))
		}
		if _, err := cw.Write(body); err != nil {
			return err
		}
		if err := cw.Close(); err != nil {
			return err
		}
		return w.Finish(nil)
	}
}

// responseWriterAdapter lets compression.Options.NewWriter's io.Writer
// target write compressed bytes straight through keepalive's streaming
// Write, instead of the single-shot WriteFull path.
type responseWriterAdapter struct {
	w *keepalive.ResponseWriter
}

func (a responseWriterAdapter) Write(p []byte) (int, error) {
	return a.w.Write(p)
}

func echoWebSocket(conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}, logger *logrus.Logger) {
	defer conn.Close()
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, msg); err != nil {
			logger.WithError(err).Debug("relayd: websocket echo write failed")
			return
		}
	}
}

func serveMetrics(addr string, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.WithField("addr", addr).Info("relayd: metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.WithError(err).Error("relayd: metrics server exited")
	}
}

func waitForShutdown(srv *server.Server, logger *logrus.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("relayd: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("relayd: graceful shutdown timed out, forcing close")
		_ = srv.Close()
	}
}
