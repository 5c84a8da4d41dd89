// Package httpimpl serves the audit and double spend registry API over echo.
package httpimpl

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/stores/chainstate"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var AuditStat = gocore.NewStat("AuditAPI")

type Auditor interface {
	ComputeUTXOStats(ctx context.Context, provider chainstate.Provider) (*model.UTXOStats, error)
}

type Registry interface {
	RegisterDoubleSpendAttempt(ctx context.Context, outpoint model.Outpoint, txID chainhash.Hash, height uint32) error
	PruneOldRecords(ctx context.Context, currentHeight uint32) (deleted int, remaining int, err error)
	GetAllRecords() []*model.DoubleSpendRecord
	GetRecord(outpoint model.Outpoint) *model.DoubleSpendRecord
}

type HealthFunc func(ctx context.Context, checkLiveness bool) (int, string, error)

type HTTP struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	auditor   Auditor
	provider  chainstate.Provider
	registry  Registry
	e         *echo.Echo
	startTime time.Time
}

// New registers the routes:
//
//	GET  /alive
//	GET  /health
//	GET  {prefix}/utxostats
//	GET  {prefix}/doublespends
//	GET  {prefix}/doublespends/:txid/:vout
//	POST {prefix}/doublespends
//	POST {prefix}/doublespends/prune
func New(logger ulogger.Logger, tSettings *settings.Settings, auditor Auditor, provider chainstate.Provider, registry Registry, healthFn HealthFunc) *HTTP {
	initPrometheusMetrics()

	e := echo.New()
	e.Debug = tSettings.Audit.EchoDebug
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())

	if e.Debug {
		e.Use(customLoggerMiddleware(logger))
	}

	h := &HTTP{
		logger:    logger,
		settings:  tSettings,
		auditor:   auditor,
		provider:  provider,
		registry:  registry,
		e:         e,
		startTime: time.Now(),
	}

	e.GET("/alive", func(c echo.Context) error {
		return c.String(http.StatusOK, fmt.Sprintf("Audit API is alive. Uptime: %s\n", time.Since(h.startTime)))
	})

	e.GET("/health", func(c echo.Context) error {
		status, details, err := healthFn(c.Request().Context(), false)
		if err != nil || status != http.StatusOK {
			return c.String(http.StatusServiceUnavailable, details)
		}

		return c.String(http.StatusOK, details)
	})

	apiGroup := e.Group(tSettings.Audit.APIPrefix)

	apiGroup.GET("/utxostats", h.GetUTXOStats)
	apiGroup.GET("/doublespends", h.GetDoubleSpends)
	apiGroup.GET("/doublespends/:txid/:vout", h.GetDoubleSpend)
	apiGroup.POST("/doublespends", h.RegisterDoubleSpend)
	apiGroup.POST("/doublespends/prune", h.PruneDoubleSpends)

	if tSettings.StatsPrefix != "" {
		e.GET(tSettings.StatsPrefix+"stats", AdaptStdHandler(gocore.HandleStats))
		e.GET(tSettings.StatsPrefix+"reset", AdaptStdHandler(gocore.ResetStats))
		e.GET(tSettings.StatsPrefix+"*", AdaptStdHandler(gocore.HandleOther))
	}

	if tSettings.Prometheus.Endpoint != "" {
		e.GET(tSettings.Prometheus.Endpoint, echo.WrapHandler(promhttp.Handler()))
	}

	return h
}

func AdaptStdHandler(handler func(w http.ResponseWriter, r *http.Request)) echo.HandlerFunc {
	return func(c echo.Context) error {
		handler(c.Response().Writer, c.Request())
		return nil
	}
}

// Start serves on addr until ctx is done. readyCh is closed once the listener is bound.
func (h *HTTP) Start(ctx context.Context, addr string, readyCh chan<- struct{}) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewServiceError("[AuditAPI] failed to listen on %s", addr, err)
	}

	h.e.Listener = listener

	go func() {
		<-ctx.Done()

		h.logger.Infof("[AuditAPI] HTTP service shutting down")

		if err := h.e.Shutdown(context.Background()); err != nil {
			h.logger.Errorf("[AuditAPI] HTTP service shutdown error: %s", err)
		}
	}()

	h.logger.Infof("[AuditAPI] HTTP listening on %s", listener.Addr())

	if readyCh != nil {
		close(readyCh)
	}

	err = h.e.Start(addr)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (h *HTTP) Stop(ctx context.Context) error {
	return h.e.Shutdown(ctx)
}

// ServeHTTP lets the routes be exercised without a listener.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.e.ServeHTTP(w, r)
}

func customLoggerMiddleware(logger ulogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			logger.Infof("%s %s %d %s", req.Method, req.URL.Path, res.Status, time.Since(start))

			return err
		}
	}
}
