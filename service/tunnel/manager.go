package tunnel

import (
	"context"

	"github.com/HynoR/wsvpn/api"
)

// Manager abstracts tunnel maintenance so it can be easily mocked.
type Manager interface {
	Run(ctx context.Context, sup *api.RetrySupervisor) error
}

// DefaultManager delegates to the supervisor's own Run for production.
type DefaultManager struct{}

func (DefaultManager) Run(ctx context.Context, sup *api.RetrySupervisor) error {
	return sup.Run(ctx)
}
