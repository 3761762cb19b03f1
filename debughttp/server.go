/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package debughttp

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	libenc "github.com/nabbar/mediagraphd/encoding"
	enchex "github.com/nabbar/mediagraphd/encoding/hexa"
)

// Snapshot is what a SnapshotFunc reports for the /debug/state
// handler; it mirrors the registry globals and live object counts a
// developer would otherwise have to infer from logs.
type Snapshot struct {
	Clients int            `json:"clients"`
	Globals int            `json:"globals"`
	Nodes   int            `json:"nodes"`
	Links   int            `json:"links"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// SnapshotFunc produces the current Snapshot; called once per request.
type SnapshotFunc func() Snapshot

// Metrics is the set of prometheus collectors the daemon updates as it
// runs; NewMetrics registers them on the caller's registry, which /metrics
// serves.
type Metrics struct {
	ClientsConnected prometheus.Gauge
	ObjectsTotal     prometheus.Gauge
	LinksRunning     prometheus.Gauge
	ErrorsTotal      prometheus.Counter
}

// NewMetrics builds and registers a fresh Metrics set on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediagraphd", Name: "clients_connected",
			Help: "Number of clients currently connected to the core.",
		}),
		ObjectsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediagraphd", Name: "objects_total",
			Help: "Number of live protocol objects across all clients.",
		}),
		LinksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediagraphd", Name: "links_running",
			Help: "Number of links currently in the RUNNING state.",
		}),
		ErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mediagraphd", Name: "errors_total",
			Help: "Number of fatal errors raised to clients.",
		}),
	}
	reg.MustRegister(m.ClientsConnected, m.ObjectsTotal, m.LinksRunning, m.ErrorsTotal)
	return m
}

// BlockDumpFunc returns the raw bytes backing a memory-pool block id, and
// whether that id currently exists, so /debug/pool/:id can hex-dump a
// block's contents without an operator needing a separate tool.
type BlockDumpFunc func(id uint32) ([]byte, bool)

// Server is the loopback diagnostic HTTP server.
type Server struct {
	mu        sync.Mutex
	srv       *http.Server
	ln        net.Listener
	engine    *gin.Engine
	hex       libenc.Coder
	blockDump BlockDumpFunc
}

// New builds a Server bound to addr (normally 127.0.0.1:<port>), exposing
// GET /debug/state from snap, GET /metrics from reg, and GET
// /debug/pool/:id hex-dumping a pool block once SetBlockDump is called.
// readHeaderTimeout bounds how long the server waits for a client's
// request headers before aborting the connection.
func New(addr string, snap SnapshotFunc, reg *prometheus.Registry, readHeaderTimeout time.Duration) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	s := &Server{engine: e, hex: enchex.New()}

	e.GET("/debug/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, snap())
	})
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	e.GET("/debug/pool/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.String(http.StatusBadRequest, "bad block id")
			return
		}
		s.mu.Lock()
		dump := s.blockDump
		s.mu.Unlock()
		if dump == nil {
			c.String(http.StatusNotFound, "pool dump not wired")
			return
		}
		b, ok := dump(uint32(id))
		if !ok {
			c.String(http.StatusNotFound, "no such block")
			return
		}
		c.String(http.StatusOK, string(s.hex.Encode(b)))
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 5 * time.Second
	}
	s.srv = &http.Server{Handler: e, ReadHeaderTimeout: readHeaderTimeout}
	s.ln = ln
	return s, nil
}

// SetBlockDump wires f as the source for /debug/pool/:id; until called the
// route reports 404.
func (s *Server) SetBlockDump(f BlockDumpFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockDump = f
}

// Addr returns the actual listening address, useful when addr was
// "127.0.0.1:0".
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve runs the HTTP server until Shutdown is called. It is meant to
// run in its own goroutine.
func (s *Server) Serve() error {
	err := s.srv.Serve(s.ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
