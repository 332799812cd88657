// Package events handles event emission for sync and similarity lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/CBPFGMS/GOmapping/pkg/kafka"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes registry lifecycle events. A nil Emitter is valid
// and drops every event, for deployments without a broker.
type Emitter struct {
	producer *kafka.Producer
	logger   logging.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger logging.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitSyncCompleted emits a sync.completed event for a finished sync run
func (e *Emitter) EmitSyncCompleted(ctx context.Context, syncType string, status string, recordsProcessed int, triggeredBy string) error {
	if e == nil || e.producer == nil {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitSyncCompleted")
	defer span.End()

	data := map[string]any{
		"schema_version":    SchemaVersion,
		"sync_type":         syncType,
		"status":            status,
		"records_processed": recordsProcessed,
	}
	dataJSON, _ := json.Marshal(data)

	event := &kafka.RegistryEvent{
		EventType:   "sync.completed",
		Subject:     syncType,
		Data:        dataJSON,
		TriggeredBy: triggeredBy,
	}

	if err := e.producer.PublishRegistryEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit sync.completed event")
		return err
	}

	return nil
}

// EmitSimilarityRecomputed emits a similarity.recomputed event after a
// full recompute pass
func (e *Emitter) EmitSimilarityRecomputed(ctx context.Context, organizations int, pairsScored int, edgesStored int) error {
	if e == nil || e.producer == nil {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitSimilarityRecomputed")
	defer span.End()

	data := map[string]any{
		"schema_version": SchemaVersion,
		"organizations":  organizations,
		"pairs_scored":   pairsScored,
		"edges_stored":   edgesStored,
	}
	dataJSON, _ := json.Marshal(data)

	event := &kafka.RegistryEvent{
		EventType: "similarity.recomputed",
		Subject:   "similarity",
		Data:      dataJSON,
	}

	if err := e.producer.PublishRegistryEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit similarity.recomputed event")
		return err
	}

	return nil
}
