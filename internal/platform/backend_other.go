//go:build !linux

package platform

import (
	"context"
	"fmt"
	"runtime"
)

// NewEngine reports that no automation backend exists for this OS.
func NewEngine(ctx context.Context) (Engine, error) {
	return nil, fmt.Errorf("no automation engine for %s", runtime.GOOS)
}
