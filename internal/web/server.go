package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forPelevin/vid2gif/internal/logging"
	"github.com/forPelevin/vid2gif/internal/ports"
	"github.com/forPelevin/vid2gif/internal/session"
	"github.com/forPelevin/vid2gif/internal/usecase"
)

type Deps struct {
	Logger   logging.Logger
	Sessions *session.Manager
	Video    ports.VideoOpener
	Encoder  ports.GIFEncoder
}

type Server struct {
	cfg      Config
	logger   logging.Logger
	sessions *session.Manager
	uc       usecase.Usecase
	cookie   *workspaceCookie
	engine   *gin.Engine
}

func NewServer(cfg Config, d Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if d.Video == nil || d.Encoder == nil {
		return nil, errors.New("video decoder and gif encoder are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.NopLogger
	}
	ttl := cfg.SessionTTL
	if ttl == 0 {
		ttl = session.DefaultTTL
	}
	cookie, err := newWorkspaceCookie(cfg.SessionKey, ttl, cfg.SecureCookie)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: d.Sessions,
		uc:       usecase.New(usecase.Deps{Video: d.Video, Encoder: d.Encoder}),
		cookie:   cookie,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger)
	_ = router.SetTrustedProxies(nil)
	router.MaxMultipartMemory = 32 << 20
	router.HTMLRender = createTemplateRenderer()

	router.GET("/", s.index)
	router.GET("/health", s.health)
	router.POST("/upload", s.upload)

	ws := router.Group("/w/:id")
	{
		ws.GET("", s.showWorkspace)
		ws.GET("/video", s.video)
		ws.POST("/convert", s.convert)
		ws.GET("/gif", s.gif)
		ws.GET("/gif/download", s.downloadGIF)
		ws.POST("/release", s.release)
	}
	return router
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, sweeping idle workspaces meanwhile.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.sessions.Run(ctx, s.cfg.SweepInterval)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", s.cfg.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Info("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}
