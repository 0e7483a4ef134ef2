package ledger

import (
	"context"
	"encoding/hex"

	"github.com/attocash/wallet-core/jobs"
	log "github.com/sirupsen/logrus"
)

// Service runs ledger store calls on the worker pool. A write that has been
// picked up by a worker completes even if the caller gives up waiting.
type Service struct {
	store Store
	wp    *jobs.WorkerPool
}

func NewService(store Store, wp *jobs.WorkerPool) *Service {
	return &Service{store, wp}
}

func (s *Service) LastEntry(ctx context.Context, publicKey []byte) (e AccountEntry, found bool, err error) {
	err = s.wp.Do(ctx, func(ctx context.Context) (err error) {
		e, found, err = s.store.LastEntry(ctx, publicKey)
		return
	})
	return
}

func (s *Service) ListEntries(ctx context.Context, publicKey []byte) (ee []AccountEntry, err error) {
	err = s.wp.Do(ctx, func(ctx context.Context) (err error) {
		ee, err = s.store.ListEntries(ctx, publicKey)
		return
	})
	return
}

func (s *Service) SaveEntry(ctx context.Context, e *AccountEntry) error {
	err := s.wp.Do(ctx, func(ctx context.Context) error {
		return s.store.SaveEntry(ctx, e)
	})
	if err != nil {
		return err
	}

	log.
		WithFields(log.Fields{
			"publicKey": hex.EncodeToString(e.PublicKey),
			"height":    e.Height,
		}).
		Debug("Saved account entry")

	return nil
}

func (s *Service) Work(ctx context.Context) (w Work, found bool, err error) {
	err = s.wp.Do(ctx, func(ctx context.Context) (err error) {
		w, found, err = s.store.Work(ctx)
		return
	})
	return
}

func (s *Service) SetWork(ctx context.Context, w *Work) error {
	err := s.wp.Do(ctx, func(ctx context.Context) error {
		return s.store.SetWork(ctx, w)
	})
	if err != nil {
		return err
	}

	log.
		WithFields(log.Fields{"publicKey": hex.EncodeToString(w.PublicKey)}).
		Debug("Stored work")

	return nil
}

func (s *Service) ClearWork(ctx context.Context) error {
	return s.wp.Do(ctx, func(ctx context.Context) error {
		return s.store.ClearWork(ctx)
	})
}

func (s *Service) Clear(ctx context.Context) error {
	err := s.wp.Do(ctx, func(ctx context.Context) error {
		return s.store.Clear(ctx)
	})
	if err != nil {
		return err
	}

	log.Info("Cleared ledger cache")

	return nil
}
