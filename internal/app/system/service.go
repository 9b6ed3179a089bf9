// Package system provides the lifecycle-managed service abstraction shared
// by the HTTP API, the drain worker, and the rollup scheduler.
package system

import "context"

// Service represents a lifecycle-managed component. Every long-running part
// of the application implements this interface so a Manager can start and
// stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
