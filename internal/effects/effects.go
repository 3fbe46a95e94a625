// Package effects runs the side effects of a catalog mutation under one of
// two policies: durable effects run inside the mutation's transaction and
// fail it, best-effort effects run after commit and only log failures.
package effects

import (
	"context"
	"fmt"

	"github.com/schemajeli/schemajeli/internal/config"
	"github.com/schemajeli/schemajeli/internal/logger"
)

type Policy string

const (
	Durable    Policy = config.PolicyDurable
	BestEffort Policy = config.PolicyBestEffort
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case Durable, BestEffort:
		return Policy(s), nil
	case "":
		return BestEffort, nil
	default:
		return "", fmt.Errorf("unknown side-effect policy %q", s)
	}
}

type Effect struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

type Runner struct {
	logger *logger.Logger
}

func NewRunner(log *logger.Logger) *Runner {
	return &Runner{logger: log}
}

// RunDurable runs every durable effect in order and stops at the first failure.
func (r *Runner) RunDurable(ctx context.Context, effects []Effect) error {
	for _, e := range effects {
		if e.Policy != Durable {
			continue
		}
		if err := e.Run(ctx); err != nil {
			return fmt.Errorf("%s failed: %w", e.Name, err)
		}
	}
	return nil
}

// RunBestEffort runs every best-effort effect, logging failures.
func (r *Runner) RunBestEffort(ctx context.Context, effects []Effect) {
	for _, e := range effects {
		if e.Policy == Durable {
			continue
		}
		if err := e.Run(ctx); err != nil {
			r.logger.Warnf("Best-effort %s failed: %v", e.Name, err)
		}
	}
}
