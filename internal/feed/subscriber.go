package feed

import (
	"context"
	"errors"
	"time"

	"budgetdash/internal/core"
	"budgetdash/internal/log"
	"budgetdash/internal/store"
)

// Snapshot is one delivery of a subscription: the full current contents of
// a collection, or Err when the store could not be read.
type Snapshot struct {
	Collection core.Collection
	Documents  []core.Document
	Seq        uint64
	Err        error
	ReadAt     time.Time
}

// Subscriber produces live snapshot subscriptions over a store reader.
type Subscriber struct {
	reader store.Reader
	hub    *Hub
	logger *log.Logger

	// Retry policy after a failed read.
	RetryMin time.Duration
	RetryMax time.Duration
}

func NewSubscriber(r store.Reader, hub *Hub, logger *log.Logger) *Subscriber {
	if logger == nil {
		logger = log.Discard()
	}
	return &Subscriber{
		reader:   r,
		hub:      hub,
		logger:   logger.WithComponent(log.ComponentFeed),
		RetryMin: time.Second,
		RetryMax: 30 * time.Second,
	}
}

// Subscribe delivers a snapshot of c right away and a fresh one after every
// change signal. Failed reads are delivered with Err set and retried with
// backoff. The channel is closed when ctx is done. Each call is independent.
func (s *Subscriber) Subscribe(ctx context.Context, c core.Collection) <-chan Snapshot {
	out := make(chan Snapshot)
	signals, stop := s.hub.Watch(c)

	go func() {
		defer close(out)
		defer stop()

		var seq uint64
		var retry <-chan time.Time
		failures := 0

		for {
			seq++
			snap := s.read(ctx, c, seq)
			if ctx.Err() != nil {
				return
			}
			if snap.Err != nil {
				failures++
				delay := Backoff(failures, s.RetryMin, s.RetryMax)
				s.logger.WarnContext(ctx, "Snapshot read failed",
					log.FieldCollection, c, log.FieldSeq, seq, log.FieldError, snap.Err, "retry_in", delay)
				retry = time.After(delay)
			} else {
				failures = 0
				retry = nil
			}

			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}

			select {
			case <-signals:
			case <-retry:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *Subscriber) read(ctx context.Context, c core.Collection, seq uint64) Snapshot {
	docs, err := s.reader.Snapshot(ctx, c)
	snap := Snapshot{Collection: c, Seq: seq, ReadAt: time.Now()}
	if err != nil {
		if !errors.Is(err, core.ErrStoreUnavailable) {
			err = errors.Join(core.ErrStoreUnavailable, err)
		}
		snap.Err = err
		return snap
	}
	snap.Documents = docs
	return snap
}

// Backoff returns lo doubled once per failure beyond the first, capped at hi.
func Backoff(failures int, lo, hi time.Duration) time.Duration {
	if failures <= 1 {
		return lo
	}
	d := lo
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= hi {
			return hi
		}
	}
	return d
}
