// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the audit consumer for them.
package queue

import "time"

// Pipeline event types.
const (
	PipelineCreated = "pipeline.created"
	PipelineUpdated = "pipeline.updated"
	PipelineDeleted = "pipeline.deleted"
)

// PipelineEvent is published after a pipeline is created, updated or
// deleted.  It carries enough for downstream consumers to audit the change
// without querying the primary database.
type PipelineEvent struct {
	Type       string `json:"type"`
	PipelineID uint64 `json:"pipeline_id"`
	OwnerID    uint64 `json:"owner_id"`
	Owner      string `json:"owner"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewPipelineEvent stamps an event of type typ with the current UTC time.
func NewPipelineEvent(typ string, id, ownerID uint64, owner, name, status string) PipelineEvent {
	return PipelineEvent{
		Type:       typ,
		PipelineID: id,
		OwnerID:    ownerID,
		Owner:      owner,
		Name:       name,
		Status:     status,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
