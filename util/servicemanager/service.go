package servicemanager

import "context"

// Service is a long running component managed by the ServiceManager.
// Start must close or signal readyCh once the service is able to serve requests and then
// block until ctx is done or the service fails.
type Service interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Init(ctx context.Context) error
	Start(ctx context.Context, readyCh chan<- struct{}) error
	Stop(ctx context.Context) error
}
