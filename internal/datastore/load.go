package datastore

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bassista/go_datastore/internal/cache"
	"github.com/bassista/go_datastore/internal/logger"
)

// LoadAll fetches every wire record, adapts it and merges the result in one
// batch. Loader errors are returned as is. If ctx is done by the time the
// merge would start, the loaded records are dropped and ctx.Err() returned.
func (s *Store[ID, W, D, S]) LoadAll(ctx context.Context) error {
	records, err := s.loader.LoadAll(ctx)
	if err != nil {
		logger.WithComponent("store").Debugf("load all failed: %v", err)
		return err
	}
	return s.merge(ctx, records)
}

// LoadOne fetches, adapts and stores a single record. Concurrent calls for
// the same id are independent; the merge that completes last wins.
func (s *Store[ID, W, D, S]) LoadOne(ctx context.Context, id ID) error {
	r, err := s.loader.LoadOne(ctx, id)
	if err != nil {
		logger.WithComponent("store").Debugf("load %v failed: %v", id, err)
		return err
	}
	return s.merge(ctx, []D{r})
}

// LoadMany runs one LoadOne per id concurrently. The first failure cancels
// the loads that have not merged yet and is returned.
func (s *Store[ID, W, D, S]) LoadMany(ctx context.Context, ids ...ID) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			return s.LoadOne(gctx, id)
		})
	}
	return g.Wait()
}

// merge stores records unless ctx is already done. The check happens under
// the write lock, so a cancelled load never writes anything.
func (s *Store[ID, W, D, S]) merge(ctx context.Context, records []D) error {
	var cancelled error
	changed := s.cache.Batch(func(tx *cache.Tx[ID, D]) {
		if cancelled = ctx.Err(); cancelled != nil {
			return
		}
		for _, r := range records {
			tx.Set(r.RecordID(), r)
		}
	})
	if cancelled != nil {
		logger.WithComponent("store").Debugf("discarding %d loaded records: %v", len(records), cancelled)
		return cancelled
	}
	logger.WithComponent("store").Debugf("merged %d loaded records, %d changed", len(records), changed)
	return nil
}
