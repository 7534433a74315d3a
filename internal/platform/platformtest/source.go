package platformtest

import (
	"context"

	"github.com/1broseidon/deskmcp/internal/platform"
)

// Source is a platform.EngineSource that always returns Engine, or Err when
// set.
type Source struct {
	Engine platform.Engine
	Err    error
}

// NewSource wraps e.
func NewSource(e platform.Engine) *Source {
	return &Source{Engine: e}
}

func (s *Source) Acquire(ctx context.Context) (platform.Engine, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Engine, nil
}
