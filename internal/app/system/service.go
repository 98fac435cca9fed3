package system

import "context"

// Service represents a lifecycle-managed component of the TVL server, such
// as the cache refresher. The runtime starts and stops all registered
// services deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
