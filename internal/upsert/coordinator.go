// Package upsert writes analysis results to the record store without duplicating history.
package upsert

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/cuongbtq/grow-sync/internal/domain"
	"github.com/cuongbtq/grow-sync/internal/mapping"
	"github.com/cuongbtq/grow-sync/internal/notion"
	"github.com/cuongbtq/grow-sync/internal/throttle"
)

const lockStripes = 64

// Request is one history upsert
type Request struct {
	// Key is the idempotency key looked up in the history collection
	Key string
	// SourceURL is the primary record the history entry relates to
	SourceURL  string
	Properties notion.Properties
}

// Coordinator runs lookup then update-or-create against the history collection.
// Every store call passes through the shared throttle controller.
//
// Upserts for the same key are serialised within one process. Concurrent
// processes may still race between lookup and create; the later write wins.
type Coordinator struct {
	store               notion.Store
	throttle            *throttle.Controller
	historyCollectionID string
	logger              *slog.Logger

	locks [lockStripes]sync.Mutex
}

// NewCoordinator creates a new upsert coordinator
func NewCoordinator(store notion.Store, controller *throttle.Controller, historyCollectionID string, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:               store,
		throttle:            controller,
		historyCollectionID: historyCollectionID,
		logger:              logger,
	}
}

// UpdateRecord patches the primary record referenced by recordURL
func (c *Coordinator) UpdateRecord(ctx context.Context, recordURL string, props notion.Properties) (notion.RecordID, error) {
	id, err := c.store.ExtractID(recordURL)
	if err != nil {
		return "", err
	}

	err = c.throttle.Do(ctx, "update record", func(ctx context.Context) error {
		return c.store.Update(ctx, id, props)
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// UpsertRecord updates the history record carrying req.Key, or creates it
func (c *Coordinator) UpsertRecord(ctx context.Context, req Request) (notion.RecordID, error) {
	if c.historyCollectionID == "" {
		return "", fmt.Errorf("%w: history collection id is not set", domain.ErrConfiguration)
	}

	props := req.Properties.Clone()
	props[mapping.FieldIdempotencyKey] = notion.RichTextValue(req.Key)

	if _, ok := props[mapping.FieldRelatedPhoto]; !ok && req.SourceURL != "" {
		sourceID, err := c.store.ExtractID(req.SourceURL)
		if err != nil {
			return "", err
		}
		props[mapping.FieldRelatedPhoto] = notion.RelationValue(sourceID)
	}

	if _, ok := props[mapping.FieldName]; !ok {
		return "", domain.ErrMissingTitle
	}

	mu := c.lockFor(req.Key)
	mu.Lock()
	defer mu.Unlock()

	var (
		existing notion.RecordID
		found    bool
	)
	err := c.throttle.Do(ctx, "lookup history", func(ctx context.Context) error {
		var err error
		existing, found, err = c.store.LookupByKey(ctx, c.historyCollectionID, mapping.FieldIdempotencyKey, req.Key)
		return err
	})
	if err != nil {
		return "", err
	}

	if found {
		err = c.throttle.Do(ctx, "update history", func(ctx context.Context) error {
			return c.store.Update(ctx, existing, props)
		})
		if err != nil {
			return "", err
		}

		c.logger.Debug("History record updated",
			slog.String("record_id", existing.String()),
			slog.String("key", req.Key),
		)
		return existing, nil
	}

	var created notion.RecordID
	err = c.throttle.Do(ctx, "create history", func(ctx context.Context) error {
		var err error
		created, err = c.store.Create(ctx, c.historyCollectionID, props)
		return err
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("History record created",
		slog.String("record_id", created.String()),
		slog.String("key", req.Key),
	)
	return created, nil
}

func (c *Coordinator) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &c.locks[h.Sum32()%lockStripes]
}
