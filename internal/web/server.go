package web

import (
	"context"
	"embed"
	"html/template"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/promedmap/internal/alerts"
	"github.com/KaramelBytes/promedmap/internal/colour"
	"github.com/KaramelBytes/promedmap/internal/filter"
	"github.com/KaramelBytes/promedmap/internal/metrics"
	"github.com/KaramelBytes/promedmap/internal/table"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Route labels used in metrics.
const (
	routePage = "page"
	routeAPI  = "api"
)

// templateRenderer adapts the page template to echo.
type templateRenderer struct {
	templates *template.Template
}

func (t *templateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

// Options configures a Server.
type Options struct {
	TrackerPath string
	Load        table.Options
	Filterable  []string
	Page        PageOptions
	// UpdateColours saves newly assigned colours back to the store.
	UpdateColours bool
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// Server hosts the map page and its JSON API.
type Server struct {
	Echo *echo.Echo

	opts     Options
	log      logrus.FieldLogger
	tables   *table.Cache
	store    colour.Store
	metrics  *metrics.Collector
	registry *prometheus.Registry

	// mu guards colours and rnd, and serializes store saves.
	mu      sync.Mutex
	colours colour.Table
	rnd     *rand.Rand
}

// NewServer loads the colour table from store and wires the routes.
func NewServer(opts Options, store colour.Store, log logrus.FieldLogger) (*Server, error) {
	colours, err := store.Load()
	if err != nil {
		return nil, err
	}
	if dups := colours.Duplicates(); len(dups) > 0 {
		log.WithField("labels", dups).Warn("colour store holds shared colours")
	}
	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}
	s := &Server{
		Echo:     echo.New(),
		opts:     opts,
		log:      log,
		tables:   table.NewCache(),
		store:    store,
		metrics:  m,
		registry: registry,
		colours:  colours,
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Renderer = &templateRenderer{templates: pageTemplate}
	s.configureMiddleware()
	s.initRoutes()
	return s, nil
}

func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := s.log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			switch {
			case v.Error != nil || v.Status >= 500:
				entry.WithError(v.Error).Error("request failed")
			case v.Status >= 400:
				entry.Warn("request rejected")
			default:
				entry.Debug("request")
			}
			return nil
		},
	}))
}

func (s *Server) initRoutes() {
	s.Echo.GET("/", s.handlePage)
	s.Echo.GET("/api/v1/alerts", s.handleAlerts)
	s.Echo.POST("/api/v1/reload", s.handleReload)
	s.Echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})))
}

// Dataset loads the tracker and annotates it with the current colours.
func (s *Server) Dataset() (*alerts.Dataset, error) {
	t, hit, err := s.tables.Get(s.opts.TrackerPath, s.opts.Load)
	switch {
	case err != nil:
		s.metrics.TableLoaded(metrics.LoadError)
		return nil, err
	case hit:
		s.metrics.TableLoaded(metrics.LoadHit)
	default:
		s.metrics.TableLoaded(metrics.LoadMiss)
		s.log.WithFields(logrus.Fields{"path": s.opts.TrackerPath, "rows": t.Len()}).Info("tracker loaded")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ds, updated, err := alerts.Annotate(t, s.colours, s.rnd)
	if err != nil {
		return nil, err
	}
	if !hit && ds.Skipped > 0 {
		s.log.WithField("rows", ds.Skipped).Warn("rows without coordinates are not plotted")
	}
	if len(ds.Added) == 0 {
		return ds, nil
	}
	s.metrics.ColoursAssigned(len(ds.Added))
	if !s.opts.UpdateColours {
		// New colours last for this render only.
		s.log.WithField("diseases", ds.Added).Debug("assigned transient colours")
		return ds, nil
	}
	s.colours = updated
	s.log.WithField("diseases", ds.Added).Info("assigned new colours")
	if err := s.store.Save(updated); err != nil {
		// The render still succeeds with the in-memory colours.
		s.log.WithError(err).Error("save colours")
	}
	return ds, nil
}

// render runs the pipeline for one request.
func (s *Server) render(c echo.Context, route string) (*Page, error) {
	start := time.Now()
	ds, err := s.Dataset()
	if err != nil {
		return nil, err
	}
	spec := filter.FromQuery(c.QueryParams())
	p, err := Render(ds, s.opts.Filterable, spec, s.opts.Page)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRender(route, time.Since(start), len(p.Points))
	return p, nil
}

func (s *Server) handlePage(c echo.Context) error {
	p, err := s.render(c, routePage)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not build the map").SetInternal(err)
	}
	return c.Render(http.StatusOK, "index.html", p)
}

// alertsResponse is the body of GET /api/v1/alerts.
type alertsResponse struct {
	Rows   int             `json:"rows"`
	Count  int             `json:"count"`
	Points []alerts.Record `json:"points"`
}

func (s *Server) handleAlerts(c echo.Context) error {
	p, err := s.render(c, routeAPI)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not build the map").SetInternal(err)
	}
	return c.JSON(http.StatusOK, alertsResponse{Rows: p.Rows, Count: len(p.Points), Points: p.Points})
}

// handleReload drops memoized trackers so the next render reads the file
// again.
func (s *Server) handleReload(c echo.Context) error {
	s.tables.Forget()
	s.log.WithField("path", s.opts.TrackerPath).Info("tracker cache cleared")
	return c.NoContent(http.StatusNoContent)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Echo.Listener = ln
	s.Echo.Server.ReadTimeout = s.opts.ReadTimeout
	s.Echo.Server.WriteTimeout = s.opts.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Echo.Start("")
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("serving map")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}
