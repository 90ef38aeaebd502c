package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"barobak/internal/logger"
	"barobak/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

type Server struct {
	echo     *echo.Echo
	service  *Service
	histRepo *repository.HistoryRepository
	addr     string
	stopCh   chan struct{}
}

func NewServer(service *Service, histRepo *repository.HistoryRepository, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		service:  service,
		histRepo: histRepo,
		addr:     "127.0.0.1:" + strconv.Itoa(port),
		stopCh:   make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/stop", s.handleStop)
	s.echo.GET("/history", s.handleHistory)
}

// Serve blocks until the server is shut down.
func (s *Server) Serve() error {
	logger.Log.Info("daemon server started",
		zap.String("addr", s.addr))

	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Error("daemon server error", zap.Error(err))
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := map[string]any{
		"service": s.service.Snapshot(),
	}

	if s.histRepo != nil {
		stats, err := s.histRepo.GetStats()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		resp["history"] = stats
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStop(c echo.Context) error {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.histRepo == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "history is disabled"})
	}

	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil && parsed > 0 {
			n = parsed
		}
	}

	var (
		rows any
		err  error
	)
	if file := c.QueryParam("file"); file != "" {
		rows, err = s.histRepo.GetByFile(file, n)
	} else {
		rows, err = s.histRepo.GetRecent(n)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, rows)
}

// Run serves the control API and the backup service until ctx is done, a
// stop is requested through the API, or either of them fails. In-flight
// backups are awaited for a bounded time before Run returns.
func Run(ctx context.Context, service *Service, srv *Server) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return service.Run(gctx)
	})

	g.Go(srv.Serve)

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-srv.StopCh():
			logger.Log.Info("stop requested via API")
			cancel()
		}

		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	waitCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	_ = service.Shutdown(waitCtx)

	return err
}
