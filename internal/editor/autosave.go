package editor

import (
	"context"
	stderrors "errors"
	"time"
)

// DefaultAutosaveInterval is used when StartAutosave gets a non-positive interval
const DefaultAutosaveInterval = 30 * time.Second

// StartAutosave saves the mapping every interval while it is non-empty.
// The task is bound to ctx and to the session: it stops on Close or when
// ctx is cancelled. Starting it twice replaces the previous task.
func (s *Session) StartAutosave(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	prev := s.stopAuto
	autoCtx, cancel := context.WithCancel(ctx)
	s.stopAuto = cancel
	s.autosaveWG.Add(1)
	s.mu.Unlock()

	if prev != nil {
		prev()
	}

	go func() {
		defer s.autosaveWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-autoCtx.Done():
				return
			case <-ticker.C:
				s.autosaveTick(autoCtx)
			}
		}
	}()
	return nil
}

func (s *Session) autosaveTick(ctx context.Context) {
	s.mu.Lock()
	empty := len(s.fields) == 0
	s.mu.Unlock()
	if empty {
		return
	}
	if err := s.Save(ctx); err != nil {
		if stderrors.Is(err, ErrSaveInProgress) || ctx.Err() != nil {
			return
		}
		s.log.Warn("autosave failed", "error", err)
	}
}
