package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/librebrowser/internal/engine"
	"github.com/loykin/librebrowser/internal/logger"
	"github.com/loykin/librebrowser/internal/profile"
)

// Engines is the slice of the engine store the API exposes.
type Engines interface {
	Install(ctx context.Context, version, rawURL string) (string, error)
	InstallArchived(ctx context.Context, version, rawURL string) (string, error)
	ExtractArchived(ctx context.Context, version string) (string, error)
	List() []engine.Version
	LocateBinary(version string) (string, bool)
}

// Profiles is the slice of the profile manager the API exposes.
type Profiles interface {
	Open(ctx context.Context, req profile.OpenRequest) (int, bool, error)
	Close(ctx context.Context, label string) error
	Exists(label string) bool
	Running(label string) (int, bool)
	Profiles(ctx context.Context) ([]profile.Info, error)
}

const (
	defaultTailLines = 200
	maxTailLines     = 10000
	maxTailBytes     = 4 << 20
)

// Router provides embeddable HTTP handlers for engines and profiles.
// Endpoints, relative to basePath:
//
//	POST /engines/install   body: {version,url}
//	POST /engines/archive   body: {version,url}
//	POST /engines/extract   body: {version}
//	GET  /engines
//	GET  /engines/binary    query: version=... (optional)
//	POST /profiles/open     body: OpenRequest
//	POST /profiles/close    body: {label}
//	GET  /profiles/exists   query: label=...
//	GET  /profiles/running  query: label=...
//	GET  /profiles
//	GET  /logs/tail         query: lines=N
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	engines  Engines
	profiles Profiles
	basePath string
	logPath  string
	metrics  http.Handler
	logger   *slog.Logger
}

// Option customizes a Router.
type Option func(*Router)

// WithLogPath serves the host log at /logs/tail.
func WithLogPath(path string) Option { return func(r *Router) { r.logPath = path } }

// WithMetrics mounts h at /metrics under the base path.
func WithMetrics(h http.Handler) Option { return func(r *Router) { r.metrics = h } }

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option { return func(r *Router) { r.logger = l } }

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(engines Engines, profiles Profiles, basePath string, opts ...Option) *Router {
	r := &Router{engines: engines, profiles: profiles, basePath: sanitizeBase(basePath), logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), r.accessLog())
	group := g.Group(r.basePath)
	group.POST("/engines/install", r.handleInstall)
	group.POST("/engines/archive", r.handleArchive)
	group.POST("/engines/extract", r.handleExtract)
	group.GET("/engines", r.handleEngines)
	group.GET("/engines/binary", r.handleBinary)
	group.POST("/profiles/open", r.handleOpen)
	group.POST("/profiles/close", r.handleClose)
	group.GET("/profiles/exists", r.handleExists)
	group.GET("/profiles/running", r.handleRunning)
	group.GET("/profiles", r.handleProfiles)
	group.GET("/logs/tail", r.handleLogsTail)
	if r.metrics != nil {
		group.GET("/metrics", gin.WrapH(r.metrics))
	}
	return g
}

// NewServer returns an http.Server for addr using this router. The caller
// runs ListenAndServe and Shutdown.
func NewServer(addr string, r *Router) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// engine downloads can be large
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

func (r *Router) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		r.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// --- Wire types ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

// InstallRequest is the body of /engines/install and /engines/archive.
type InstallRequest struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

// ExtractRequest is the body of /engines/extract.
type ExtractRequest struct {
	Version string `json:"version"`
}

// CloseRequest is the body of /profiles/close.
type CloseRequest struct {
	Label string `json:"label"`
}

// DirResponse carries an install directory.
type DirResponse struct {
	Dir string `json:"dir"`
}

// ArchiveResponse carries the path of a stored archive.
type ArchiveResponse struct {
	Archive string `json:"archive"`
}

// EngineEntry is one row of GET /engines.
type EngineEntry struct {
	Version     string `json:"version"`
	InstalledAt string `json:"installed_at"`
}

// BinaryResponse carries a located engine executable.
type BinaryResponse struct {
	Path string `json:"path"`
}

// PIDResponse is null when no pid is known.
type PIDResponse struct {
	PID *int `json:"pid"`
}

// ExistsResponse answers /profiles/exists.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// LinesResponse answers /logs/tail.
type LinesResponse struct {
	Lines []string `json:"lines"`
}

func pidResp(pid int, ok bool) PIDResponse {
	if !ok {
		return PIDResponse{}
	}
	return PIDResponse{PID: &pid}
}

// --- Handlers ---

func (r *Router) handleInstall(c *gin.Context) {
	var req InstallRequest
	if !bindInstall(c, &req) {
		return
	}
	dir, err := r.engines.Install(c.Request.Context(), req.Version, req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, DirResponse{Dir: dir})
}

func (r *Router) handleArchive(c *gin.Context) {
	var req InstallRequest
	if !bindInstall(c, &req) {
		return
	}
	path, err := r.engines.InstallArchived(c.Request.Context(), req.Version, req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, ArchiveResponse{Archive: path})
}

func bindInstall(c *gin.Context, req *InstallRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return false
	}
	if req.Version == "" || req.URL == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "version and url required"})
		return false
	}
	return true
}

func (r *Router) handleExtract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Version == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "version required"})
		return
	}
	dir, err := r.engines.ExtractArchived(c.Request.Context(), req.Version)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, DirResponse{Dir: dir})
}

func (r *Router) handleEngines(c *gin.Context) {
	versions := r.engines.List()
	out := make([]EngineEntry, 0, len(versions))
	for _, v := range versions {
		out = append(out, EngineEntry{Version: v.Version, InstalledAt: v.InstalledAt})
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleBinary(c *gin.Context) {
	// empty version selects the newest install with a binary
	version := c.Query("version")
	path, ok := r.engines.LocateBinary(version)
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "no engine binary found for version " + strconv.Quote(version)})
		return
	}
	writeJSON(c, http.StatusOK, BinaryResponse{Path: path})
}

func (r *Router) handleOpen(c *gin.Context) {
	var req profile.OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	pid, ok, err := r.profiles.Open(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, pidResp(pid, ok))
}

func (r *Router) handleClose(c *gin.Context) {
	var req CloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.profiles.Close(c.Request.Context(), req.Label); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleExists(c *gin.Context) {
	label, ok := labelQuery(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, ExistsResponse{Exists: r.profiles.Exists(label)})
}

func (r *Router) handleRunning(c *gin.Context) {
	label, ok := labelQuery(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, pidResp(r.profiles.Running(label)))
}

func labelQuery(c *gin.Context) (string, bool) {
	label := c.Query("label")
	if err := profile.ValidateLabel(label); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return "", false
	}
	return label, true
}

func (r *Router) handleProfiles(c *gin.Context) {
	infos, err := r.profiles.Profiles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, infos)
}

func (r *Router) handleLogsTail(c *gin.Context) {
	n := defaultTailLines
	if s := c.Query("lines"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "lines must be a non-negative integer"})
			return
		}
		n = min(v, maxTailLines)
	}
	if r.logPath == "" {
		writeJSON(c, http.StatusOK, LinesResponse{Lines: []string{}})
		return
	}
	lines, err := logger.TailFile(r.logPath, n, maxTailBytes)
	if errors.Is(err, os.ErrNotExist) {
		lines, err = []string{}, nil
	}
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, LinesResponse{Lines: lines})
}
