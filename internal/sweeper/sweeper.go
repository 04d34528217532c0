// internal/sweeper/sweeper.go

// Package sweeper retires lobbies nobody is using. Un-started games whose
// players have all gone quiet would otherwise sit in the open-games listing
// forever; the sweeper marks them finished on an interval.
package sweeper

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avagner/summit/internal/lobby"
	"github.com/avagner/summit/internal/realtime"
)

// Sweeper periodically finishes idle un-started games. A lobby is idle when
// it is older than the timeout, no seated player has shown activity inside
// it, and nobody is connected to its room.
type Sweeper struct {
	store lobby.RecordStore
	reg   *realtime.Registry
	log   *logrus.Logger

	interval  time.Duration
	idleAfter time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a sweeper from environment configuration:
//   - SWEEP_INTERVAL_SEC (default 60)
//   - LOBBY_IDLE_TIMEOUT_SEC (default 1800)
func New(store lobby.RecordStore, reg *realtime.Registry, log *logrus.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		reg:       reg,
		log:       log,
		interval:  time.Duration(getEnvInt("SWEEP_INTERVAL_SEC", 60)) * time.Second,
		idleAfter: time.Duration(getEnvInt("LOBBY_IDLE_TIMEOUT_SEC", 1800)) * time.Second,
	}
}

// Start launches the sweep loop in the background.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep to finish. Safe to call
// without a prior Start, or more than once.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	<-s.done
}

// Sweep runs one pass. Failures are logged and skipped; a sweep must never
// take the service down.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	cutoff := now.Add(-s.idleAfter)

	idle, err := s.store.ListIdleLobbies(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Error("sweep failed to list idle lobbies")
		return
	}

	for _, g := range idle {
		// A room with live connections is not abandoned, whatever the
		// activity timestamps say.
		if s.reg.RoomSize(g.ID) > 0 {
			continue
		}
		if err := s.store.FinishGame(ctx, g.ID, now); err != nil {
			s.log.WithError(err).WithField("game_id", g.ID).Error("sweep failed to finish lobby")
			continue
		}
		s.log.WithFields(logrus.Fields{
			"game_id":    g.ID,
			"created_at": g.CreatedAt,
		}).Info("swept idle lobby")
	}
}

// getEnvInt retrieves an integer value from an environment variable or
// returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
