package fakeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"delegation_sync/internal/config"
	"delegation_sync/internal/logger"
	"delegation_sync/internal/models"
)

// UpdatesPath is where dashboards subscribe to change notifications.
const UpdatesPath = "/ws/updates/"

// Server is a REST and push backend that honours the dashboard contract.
type Server struct {
	cfg    *Config
	db     *gorm.DB
	hub    *UpdateHub
	secret []byte
	log    *logrus.Entry
	engine *gin.Engine

	// writeMu serialises writes so validation sees committed state.
	writeMu sync.Mutex
}

// New opens the database, seeds the admin account and builds the router.
func New(cfg *Config) (*Server, error) {
	db, err := config.OpenDB(cfg.Database, logger.GormLogger(), &Row{}, &User{})
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		db:     db,
		hub:    NewUpdateHub(),
		secret: []byte(cfg.JWTSecret),
		log:    logger.For("fakeapi"),
	}
	if err := s.ensureAdmin(); err != nil {
		s.hub.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	s.engine = s.router()
	return s, nil
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(ginlog.SetLogger(
		ginlog.WithUTC(true),
		ginlog.WithSkipPath([]string{UpdatesPath}),
	))
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.POST("/auth/login/", s.Login)

	authed := api.Group("/")
	authed.Use(s.RequireAuth())
	{
		for _, kind := range models.Kinds() {
			base := "/" + kind.Path()
			authed.GET(base+"/", s.list(kind))
			authed.POST(base+"/", s.create(kind))
			authed.GET(base+"/:id/", s.get(kind))
			authed.PATCH(base+"/:id/", s.update(kind))
			authed.PUT(base+"/:id/", s.update(kind))
			authed.DELETE(base+"/:id/", s.destroy(kind))
		}
		authed.GET("/dashboard/stats/", s.stats)
	}

	r.GET(UpdatesPath, s.hub.Serve)
	return r
}

// Handler returns the router wrapped for cross-origin dashboards.
func (s *Server) Handler() http.Handler {
	return EnableCORS(s.engine)
}

// Hub exposes the push hub, mostly so tests can drop clients.
func (s *Server) Hub() *UpdateHub { return s.hub }

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).Info("Server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.hub.Close()
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

// Close disconnects push clients and releases the database.
func (s *Server) Close() error {
	s.hub.Close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
