// Package auditapi runs the audit and double spend registry HTTP API as a managed service.
package auditapi

import (
	"context"
	"net/http"

	"github.com/bsv-blockchain/chainstate/services/auditapi/httpimpl"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/stores/chainstate"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/chainstate/util/health"
)

// Dependency is a component whose health is part of the service health.
type Dependency struct {
	Name   string
	Health httpimpl.HealthFunc
}

type Server struct {
	logger       ulogger.Logger
	settings     *settings.Settings
	auditor      httpimpl.Auditor
	provider     chainstate.Provider
	registry     httpimpl.Registry
	dependencies []Dependency
	httpServer   *httpimpl.HTTP
}

func New(logger ulogger.Logger, tSettings *settings.Settings, auditor httpimpl.Auditor, provider chainstate.Provider,
	registry httpimpl.Registry, dependencies ...Dependency) *Server {
	return &Server{
		logger:       logger,
		settings:     tSettings,
		auditor:      auditor,
		provider:     provider,
		registry:     registry,
		dependencies: dependencies,
	}
}

func (s *Server) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	checks := make([]health.Check, 0, len(s.dependencies))
	for _, d := range s.dependencies {
		checks = append(checks, health.Check{Name: d.Name, Check: d.Health})
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

func (s *Server) Init(_ context.Context) error {
	s.httpServer = httpimpl.New(s.logger, s.settings, s.auditor, s.provider, s.registry, s.Health)
	return nil
}

// Start blocks until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	err := s.httpServer.Start(ctx, s.settings.Audit.HTTPListenAddress, readyCh)
	if err != nil {
		s.logger.Errorf("[AuditAPI] error in http server: %v", err)
	}

	return err
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Stop(ctx)
}
