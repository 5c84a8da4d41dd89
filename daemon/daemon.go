// Package daemon wires the stores and services of the chainstate node together and runs them
// under a ServiceManager.
package daemon

import (
	"context"
	"sync"

	"github.com/bsv-blockchain/chainstate/services/auditapi"
	"github.com/bsv-blockchain/chainstate/services/doublespends"
	"github.com/bsv-blockchain/chainstate/services/utxoaudit"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/chainstate/util/servicemanager"
)

// Option is a functional option type for configuring the Daemon.
type Option func(*Daemon)

// WithLoggerFactory provides a custom logger factory for the Daemon and its services.
func WithLoggerFactory(factory func(serviceName string) ulogger.Logger) Option {
	return func(d *Daemon) {
		d.loggerFactory = factory
	}
}

func WithContext(ctx context.Context) Option {
	return func(d *Daemon) {
		d.Ctx = ctx
	}
}

type Daemon struct {
	Ctx            context.Context
	ServiceManager *servicemanager.ServiceManager
	loggerFactory  func(serviceName string) ulogger.Logger

	mu       sync.Mutex
	stores   *Stores
	registry *doublespends.Registry
	auditor  *utxoaudit.Auditor
}

func New(opts ...Option) *Daemon {
	d := &Daemon{
		Ctx: context.Background(),
		loggerFactory: func(serviceName string) ulogger.Logger {
			return ulogger.New(serviceName)
		},
	}

	for _, opt := range opts {
		opt(d)
	}

	d.ServiceManager = servicemanager.NewServiceManager(d.Ctx, d.loggerFactory("ServiceManager"))

	return d
}

// Start opens the stores, loads the double spend registry and serves the audit API until the
// daemon is stopped or a service fails. readyCh is closed once every service is ready.
func (d *Daemon) Start(logger ulogger.Logger, tSettings *settings.Settings, readyCh ...chan struct{}) error {
	sm := d.ServiceManager

	stores, err := OpenStores(sm.Ctx, d.loggerFactory, tSettings)
	if err != nil {
		logger.Errorf("error opening stores: %v", err)
		sm.ForceShutdown()

		return err
	}

	defer stores.Close(logger)

	registry, err := doublespends.New(sm.Ctx, d.loggerFactory("doublespends"), stores.DoubleSpends, tSettings)
	if err != nil {
		logger.Errorf("error loading double spend registry: %v", err)
		sm.ForceShutdown()

		return err
	}

	auditor := utxoaudit.New(d.loggerFactory("utxoaudit"))

	d.mu.Lock()
	d.stores = stores
	d.registry = registry
	d.auditor = auditor
	d.mu.Unlock()

	server := auditapi.New(d.loggerFactory("auditapi"), tSettings, auditor, stores.Chainstate, registry,
		auditapi.Dependency{Name: "Chainstate", Health: stores.Chainstate.Health},
		auditapi.Dependency{Name: "DoubleSpends", Health: registry.Health},
	)

	if err = sm.AddService("AuditAPI", server); err != nil {
		logger.Errorf("error starting services: %v", err)
		sm.ForceShutdown()
	} else if len(readyCh) > 0 && readyCh[0] != nil {
		go func() {
			sm.WaitForServiceToBeReady()
			close(readyCh[0])
		}()
	}

	if waitErr := sm.Wait(); waitErr != nil {
		return waitErr
	}

	return err
}

// Stop cancels the services. Start returns once they have stopped and the stores are closed.
func (d *Daemon) Stop() {
	d.ServiceManager.ForceShutdown()
}

// Registry returns the double spend registry once Start has loaded it.
func (d *Daemon) Registry() *doublespends.Registry {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.registry
}

func (d *Daemon) Auditor() *utxoaudit.Auditor {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.auditor
}

func (d *Daemon) Stores() *Stores {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.stores
}
