package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/unitconsole/internal/auth"
	"github.com/danmuck/unitconsole/internal/console"
	"github.com/danmuck/unitconsole/internal/controller"
	"github.com/danmuck/unitconsole/internal/observability"
	"github.com/danmuck/unitconsole/internal/protocol/session"
	"github.com/danmuck/unitconsole/internal/reader"
	"github.com/danmuck/unitconsole/internal/selector"
	"github.com/danmuck/unitconsole/internal/unit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

var ErrAddrRequired = errors.New("admin: listen address required")

// UnitView is the JSON shape of one unit.
type UnitView struct {
	Handle   int32  `json:"handle"`
	ID       int32  `json:"id"`
	Label    string `json:"label,omitempty"`
	Category string `json:"category"`
	Running  bool   `json:"running"`
}

// CommandView is the JSON shape of one command and its descriptor.
type CommandView struct {
	Name       string          `json:"name"`
	Summary    string          `json:"summary"`
	Examples   []string        `json:"examples"`
	Descriptor json.RawMessage `json:"descriptor,omitempty"`
}

type executeRequest struct {
	Input string `json:"input" binding:"required"`
}

type executeResponse struct {
	Output       string `json:"output"`
	ErrorKind    string `json:"error_kind"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorCursor  uint32 `json:"error_cursor,omitempty"`
}

// Server exposes one controller over HTTP.
type Server struct {
	svc    *controller.Service
	addr   string
	router *gin.Engine
}

func New(svc *controller.Service, addr string, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware("admin"))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{svc: svc, addr: addr, router: r}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.addr == "" {
		return ErrAddrRequired
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("admin.server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"uptime":     time.Since(s.svc.Started()).String(),
			"controller": s.svc.Config().ControllerID,
			"version":    version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":    true,
			"units":    s.svc.Units().Len(),
			"sessions": s.svc.SessionCount(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/units", s.listUnits)
	s.router.GET("/commands", s.listCommands)
	s.router.POST("/execute", s.requireToken(), s.execute)
}

// requireToken guards a route when the controller has an admin token.
func (s *Server) requireToken() gin.HandlerFunc {
	token := s.svc.Config().AdminToken
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if err := auth.Check(auth.StaticToken(token), c.GetHeader("Authorization")); err != nil {
			log.Warn().
				Str("request_id", c.GetString(observability.RequestIDKey)).
				Err(err).
				Msg("admin.auth rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// listUnits returns every unit, or the matches of ?selector= when given.
func (s *Server) listUnits(c *gin.Context) {
	units := s.svc.Units().All()
	if raw := c.Query("selector"); raw != "" {
		r := reader.New(raw)
		sel, err := selector.Many().Parse(r)
		if err == nil && r.CanRead() {
			err = r.Errorf(console.ErrTrailingInput, "unexpected trailing data after selector")
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if units, err = sel.ResolveIn(s.svc.Units()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	views := make([]UnitView, 0, len(units))
	for _, u := range units {
		views = append(views, viewOf(u))
	}
	c.JSON(http.StatusOK, gin.H{"units": views})
}

func (s *Server) listCommands(c *gin.Context) {
	docs, err := s.svc.Console().Documents(s.svc.Codecs())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	cmds := s.svc.Console().Commands()
	views := make([]CommandView, 0, len(cmds))
	for _, cmd := range cmds {
		view := CommandView{Name: cmd.Name, Summary: cmd.Summary, Examples: cmd.Examples()}
		if doc, ok := docs[cmd.Name]; ok {
			view.Descriptor = json.RawMessage(doc)
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"commands": views})
}

func (s *Server) execute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := s.svc.Execute(c.Request.Context(), req.Input)
	c.JSON(statusFor(res.ErrorKind), executeResponse{
		Output:       res.Output,
		ErrorKind:    res.ErrorKind,
		ErrorMessage: res.ErrorMessage,
		ErrorCursor:  res.ErrorCursor,
	})
}

func statusFor(kind string) int {
	switch kind {
	case session.ErrorKindParse:
		return http.StatusBadRequest
	case session.ErrorKindNoMatch:
		return http.StatusNotFound
	case session.ErrorKindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func viewOf(u unit.Unit) UnitView {
	return UnitView{
		Handle:   u.Handle,
		ID:       u.ID,
		Label:    u.Label,
		Category: u.Category.String(),
		Running:  u.Running,
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
