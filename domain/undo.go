package domain

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// undoLog collects compensating actions for a multi-step mutation. On failure
// the actions run newest first; a compensation that fails is logged and the
// remaining ones still run.
type undoLog struct {
	steps []undoStep
}

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

func (u *undoLog) push(name string, fn func(ctx context.Context) error) {
	u.steps = append(u.steps, undoStep{name: name, fn: fn})
}

func (u *undoLog) rollback(ctx context.Context) {
	for i := len(u.steps) - 1; i >= 0; i-- {
		s := u.steps[i]
		if err := s.fn(ctx); err != nil {
			log.WithFields(log.Fields{"step": s.name, "error": err}).Error("compensating write failed; mirror may diverge")
		}
	}
	u.steps = nil
}
