// Package server exposes the outward HTTP contract and the scheduled ingest
// loop.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/internal/enrich"
	"github.com/ospreyintel/awardflow/internal/ingest"
	"github.com/ospreyintel/awardflow/internal/insight"
	"github.com/ospreyintel/awardflow/internal/intel"
	"github.com/ospreyintel/awardflow/internal/linker"
	"github.com/ospreyintel/awardflow/internal/pipeline"
	"github.com/ospreyintel/awardflow/internal/scraper"
	"github.com/ospreyintel/awardflow/internal/store"
	"github.com/ospreyintel/awardflow/internal/usaspending"
)

// App holds the wired components behind the HTTP handlers.
type App struct {
	Config   *config.Config
	Store    *store.Store
	Client   *usaspending.Client
	Ingestor *ingest.Ingestor
	Enricher *enrich.Enricher
	Analyzer *intel.Analyzer
	Linker   *linker.Linker
	Orch     *pipeline.Orchestrator
	Rdb      *redis.Client
	Logger   *log.Logger
}

// NewApp performs top-level dependency wiring from loaded configuration.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)

	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Storage.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
	}

	client := usaspending.NewClient(cfg.USASpending, log.New(os.Stdout, "[USASPEND] ", log.LstdFlags))
	client.Metrics = usaspending.NewMetrics(prometheus.DefaultRegisterer)

	registry := enrich.NewRegistryClient(cfg.SAM, rdb)
	enricher := enrich.NewEnricher(client, st, registry, log.New(os.Stdout, "[ENRICH] ", log.LstdFlags))
	analyzer := intel.NewAnalyzer(st, cfg.Intelligence, log.New(os.Stdout, "[INTEL] ", log.LstdFlags))
	lnk := linker.NewLinker(st, cfg.Linker, log.New(os.Stdout, "[LINKER] ", log.LstdFlags))

	orch := pipeline.NewOrchestrator(st, scraper.New(), lnk, analyzer,
		insight.NewProvider(cfg.Insight), cfg.Pipeline, log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags))

	return &App{
		Config:   cfg,
		Store:    st,
		Client:   client,
		Ingestor: ingest.NewIngestor(client, st, cfg.Ingest, log.New(os.Stdout, "[INGEST] ", log.LstdFlags)),
		Enricher: enricher,
		Analyzer: analyzer,
		Linker:   lnk,
		Orch:     orch,
		Rdb:      rdb,
		Logger:   logger,
	}, nil
}

// Run wires the application and serves the HTTP API until the listener
// fails.
func Run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}

	sched := &Scheduler{
		App:  app,
		Cron: cfg.Ingest.ScheduleCron,
		Rdb:  app.Rdb,
		Stop: make(chan struct{}),
	}
	sched.Start()
	defer close(sched.Stop)

	e := newEcho(app)
	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	app.Logger.Printf("listening on %s", addr)
	return e.Start(addr)
}

func newEcho(app *App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	httpLogger := log.New(os.Stdout, "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		httpLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/ingest", app.handleIngest)
	api.POST("/enrich", app.handleEnrich)
	api.POST("/links/run", app.handleLinkRun)
	api.POST("/pipeline/:id", app.handlePipeline)
	api.POST("/pipeline", app.handlePipelineAll)
	api.GET("/opportunities/:id/intelligence", app.handleIntelligence)
	api.GET("/awards", app.handleListAwards)
	api.GET("/awards/:id", app.handleGetAward)
	return e
}
