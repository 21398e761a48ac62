package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/cockpit/internal/lifecycle"
	"github.com/loykin/cockpit/internal/metrics"
)

// Controller is the part of the lifecycle coordinator the HTTP surface drives.
type Controller interface {
	Status() lifecycle.Status
	Dispatch(e lifecycle.Event)
}

// Router provides embeddable HTTP handlers that act as a headless tray.
// Endpoints:
//
//	GET  {basePath}/status   lifecycle state and server snapshot
//	POST {basePath}/show     same as the tray "show" item
//	POST {basePath}/hide     same as a window close request (hide to tray)
//	POST {basePath}/quit     same as the tray "quit" item
//	GET  {basePath}/metrics  Prometheus metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	ctl      Controller
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/abc" results in /abc/status, /abc/show, /abc/quit.
func NewRouter(ctl Controller, basePath string) *Router {
	return &Router{ctl: ctl, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	r.Register(g)
	return g
}

// Register mounts the routes on an existing gin engine.
func (r *Router) Register(g gin.IRouter) {
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.POST("/show", r.handleShow)
	group.POST("/hide", r.handleHide)
	group.POST("/quit", r.handleQuit)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// NewServer binds addr, which must be a loopback address, and serves the
// router in the background. Bind errors are returned immediately.
func NewServer(addr, basePath string, ctl Controller, log *slog.Logger) (*http.Server, error) {
	if !isLoopbackAddr(addr) {
		return nil, fmt.Errorf("control listen address %q is not a loopback address", addr)
	}
	if log == nil {
		log = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("control listen: %w", err)
	}
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           NewRouter(ctl, basePath).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("control server stopped", "error", err)
		}
	}()
	log.Info("control server listening", "addr", server.Addr)
	return server, nil
}

// --- Handlers ---

type okResp struct {
	OK    bool   `json:"ok"`
	State string `json:"state"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.ctl.Status())
}

func (r *Router) handleShow(c *gin.Context) {
	r.ctl.Dispatch(lifecycle.Event{Kind: lifecycle.EventShow})
	writeJSON(c, http.StatusOK, okResp{OK: true, State: r.ctl.Status().State})
}

// handleHide reports OK only when the window was hidden to the tray, which
// happens while the server is running.
func (r *Router) handleHide(c *gin.Context) {
	hidden := false
	r.ctl.Dispatch(lifecycle.Event{Kind: lifecycle.EventCloseRequested, PreventClose: func() { hidden = true }})
	writeJSON(c, http.StatusOK, okResp{OK: hidden, State: r.ctl.Status().State})
}

// handleQuit answers before quitting, since quitting exits the application.
func (r *Router) handleQuit(c *gin.Context) {
	writeJSON(c, http.StatusAccepted, okResp{OK: true, State: r.ctl.Status().State})
	c.Writer.Flush()
	go r.ctl.Dispatch(lifecycle.Event{Kind: lifecycle.EventQuit})
}
