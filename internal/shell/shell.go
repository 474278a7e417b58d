// Package shell is the console's HTTP surface: the route table with
// staff-only gating, the JSON endpoints behind the staff pages and the public
// check-in flow, an /api proxy to the backend and the SPA fallback.
package shell

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courseattend/internal/apiclient"
	"courseattend/internal/auth"
	"courseattend/internal/checkin"
	"courseattend/internal/config"
	"courseattend/internal/httpmiddleware"
	"courseattend/internal/metrics"
	"courseattend/internal/session"
	"courseattend/internal/visits"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Healthy(ctx context.Context) bool
}

// VisitLister reads recorded check-in visits.
type VisitLister interface {
	List(ctx context.Context, f visits.Filter) ([]visits.Visit, error)
	Summary(ctx context.Context, slug string) (map[string]int, error)
}

// Deps are the collaborators of the console server.
type Deps struct {
	Config   config.App
	API      *apiclient.Client
	Sessions session.Store
	Recorder *visits.Recorder
	Visits   VisitLister
	Health   map[string]Pinger
	Clock    checkin.Clock
}

// Route is one browser route of the console.
type Route struct {
	Path  string
	Staff bool
}

// Routes is the console route table. Staff routes need a signed-in user;
// everything else under the SPA is public.
var Routes = []Route{
	{Path: "/login"},
	{Path: "/attend/:slug"},
	{Path: "/", Staff: true},
	{Path: "/dashboard", Staff: true},
	{Path: "/students", Staff: true},
	{Path: "/sessions", Staff: true},
	{Path: "/reports", Staff: true},
	{Path: "/student-grid", Staff: true},
}

// Server holds the handlers and the per-process state they share.
type Server struct {
	cfg      config.App
	api      *apiclient.Client
	sessions session.Store
	recorder *visits.Recorder
	visits   VisitLister
	health   map[string]Pinger
	clock    checkin.Clock
	// starts limits flow creation per client IP; flowLimit limits each
	// hosted flow by id.
	starts    *httpmiddleware.TokenBucket
	flowLimit *httpmiddleware.TokenBucket

	flows      *registry[*flow]
	workspaces *registry[*workspace]
}

// New builds a Server from deps.
func New(d Deps) *Server {
	clock := d.Clock
	if clock == nil {
		clock = checkin.SystemClock
	}
	ttl := d.Config.FlowIdleTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	s := &Server{
		cfg:      d.Config,
		api:      d.API,
		sessions: d.Sessions,
		recorder: d.Recorder,
		visits:   d.Visits,
		health:   d.Health,
		clock:    clock,
		starts:    httpmiddleware.NewTokenBucket(d.Config.RateLimitPerMin, d.Config.RateLimitPerMin),
		flowLimit: httpmiddleware.NewTokenBucket(d.Config.FlowRateLimit/2, d.Config.FlowRateLimit),
	}
	s.flows = newRegistry(ttl, clock.Now, s.evictFlow)
	s.workspaces = newRegistry[*workspace](d.Config.SessionTTL, clock.Now, nil)
	return s
}

// Router wires middleware and the route table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{s.cfg.PublicURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.Healthz)

	r.Static("/assets", filepath.Join(s.cfg.StaticDir, "assets"))
	for _, rt := range Routes {
		if rt.Staff {
			r.GET(rt.Path, s.staffPage)
		} else {
			r.GET(rt.Path, s.publicPage)
		}
	}

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", s.Login)
		authGroup.POST("/logout", auth.Console(s.cfg.JWTSigningKey, s.cfg.JWTIssuer), s.Logout)
		authGroup.GET("/me", auth.Console(s.cfg.JWTSigningKey, s.cfg.JWTIssuer), s.staff, s.Me)
	}

	ui := r.Group("/ui", auth.Console(s.cfg.JWTSigningKey, s.cfg.JWTIssuer), s.staff)
	{
		ui.GET("/dashboard", s.Dashboard)

		ui.POST("/courses", s.CreateCourse)

		ui.GET("/students", s.ListStudents)
		ui.POST("/students", s.CreateStudent)
		ui.GET("/students/:id", s.EditStudent)
		ui.PUT("/students/:id", s.UpdateStudent)
		ui.DELETE("/students/:id", s.DeleteStudent)
		ui.POST("/students/selection", s.SelectStudents)
		ui.POST("/students/bulk-delete", s.BulkDeleteStudents)
		ui.POST("/students/import", s.ImportStudents)
		ui.GET("/students/template", s.StudentTemplate)

		ui.GET("/sessions", s.ListSessions)
		ui.POST("/sessions", s.CreateSession)
		ui.GET("/sessions/:slug/qr.png", s.SessionQR)

		ui.GET("/reports", s.Reports)
		ui.GET("/reports/export", s.ExportReport)

		ui.GET("/grid", s.Grid)
		ui.PATCH("/grid/students/:id/score", s.SetGridScore)

		ui.GET("/visits", s.ListVisits)
	}

	pub := r.Group("/checkin")
	{
		pub.GET("/:slug/bootstrap", s.Bootstrap)
		pub.POST("/:slug/flows", s.starts.GinMiddleware(), s.StartFlow)
	}
	hosted := r.Group("/checkin/flows/:id", s.flowLimit.GinMiddlewareBy(func(c *gin.Context) string {
		return "flow:" + c.Param("id")
	}))
	{
		hosted.GET("", s.FlowSnapshot)
		hosted.POST("/locate", s.RelocateFlow)
		hosted.PUT("/phone", s.SetFlowPhone)
		hosted.POST("/continue", s.ContinueFlow)
		hosted.POST("/mark", s.MarkFlow)
		hosted.DELETE("", s.CloseFlow)
	}

	r.Any("/api/*path", s.Proxy())

	r.NoRoute(s.fallback)
	return r
}

// Run sweeps idle flows, workspaces and rate-limit buckets until ctx ends.
func (s *Server) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeFlows()
			return
		case <-t.C:
			s.flows.sweep()
			s.workspaces.sweep()
			s.starts.Sweep(10 * time.Minute)
			s.flowLimit.Sweep(10 * time.Minute)
		}
	}
}

// Healthz reports dependency reachability.
func (s *Server) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	body := gin.H{"status": "ok", "flows": s.flows.len()}
	for name, p := range s.health {
		ok := p.Healthy(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (s *Server) publicPage(c *gin.Context) {
	c.File(s.index())
}

// staffPage serves the SPA to signed-in staff and sends everyone else to /login.
func (s *Server) staffPage(c *gin.Context) {
	if _, ok := s.currentWorkspace(c); !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.File(s.index())
}

func (s *Server) fallback(c *gin.Context) {
	p := c.Request.URL.Path
	for _, prefix := range []string{"/ui/", "/auth/", "/checkin/", "/api/", "/assets/"} {
		if strings.HasPrefix(p, prefix) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
	}
	if c.Request.Method != http.MethodGet {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(s.index())
}

func (s *Server) index() string {
	return filepath.Join(s.cfg.StaticDir, "index.html")
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(self)")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

func observeTransition(t checkin.Transition) {
	metrics.CheckinTransitions.WithLabelValues(string(t.To)).Inc()
}
