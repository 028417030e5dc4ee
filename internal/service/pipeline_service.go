package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/pipeline-service/internal/model"
	"github.com/iliyamo/pipeline-service/internal/queue"
	"github.com/iliyamo/pipeline-service/internal/repository"
)

// PipelineStore is the part of the store the pipeline operations use.
type PipelineStore interface {
	Create(ctx context.Context, p *model.Pipeline) error
	GetByID(ctx context.Context, id uint64) (*model.Pipeline, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Pipeline, error)
	UpdateByIDAndOwner(ctx context.Context, id, ownerID uint64, name, status string) error
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error
}

// EventPublisher receives pipeline lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.PipelineEvent) error
}

// AuthorizeOwner permits access only when p exists and belongs to
// principal.  A missing pipeline and a foreign one are indistinguishable.
func AuthorizeOwner(principal *model.User, p *model.Pipeline) error {
	if principal == nil || p == nil || p.OwnerUsername != principal.Username {
		return ErrNotFoundOrUnauthorized
	}
	return nil
}

// PipelineService implements the pipeline operations for an authenticated
// principal.
type PipelineService struct {
	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
}

func NewPipelineService(events EventPublisher, log *slog.Logger) *PipelineService {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &PipelineService{events: events, log: log, now: time.Now}
}

// Create stores a pipeline owned by principal.
func (s *PipelineService) Create(ctx context.Context, store PipelineStore, principal *model.User, in PipelineInput) (*model.Pipeline, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p := &model.Pipeline{
		Name:          in.Name,
		Status:        in.Status,
		OwnerID:       principal.ID,
		OwnerUsername: principal.Username,
		CreatedAt:     s.now().UTC().Truncate(time.Second),
	}
	if err := store.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrOwnerMissing) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	s.publish(ctx, queue.PipelineCreated, p)
	return p, nil
}

// List returns the principal's pipelines ordered by id.
func (s *PipelineService) List(ctx context.Context, store PipelineStore, principal *model.User) ([]*model.Pipeline, error) {
	ps, err := store.ListByOwner(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	return ps, nil
}

// Get returns one pipeline if it belongs to principal.
func (s *PipelineService) Get(ctx context.Context, store PipelineStore, principal *model.User, id uint64) (*model.Pipeline, error) {
	p, err := store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFoundOrUnauthorized
		}
		return nil, fmt.Errorf("get pipeline: %w", err)
	}
	if err := AuthorizeOwner(principal, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces name and status of a pipeline owned by principal.  The
// write itself carries the owner predicate, so a row that changed hands
// between the read and the write is still refused.
func (s *PipelineService) Update(ctx context.Context, store PipelineStore, principal *model.User, id uint64, in PipelineInput) (*model.Pipeline, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, store, principal, id)
	if err != nil {
		return nil, err
	}
	if err := store.UpdateByIDAndOwner(ctx, id, principal.ID, in.Name, in.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFoundOrUnauthorized
		}
		return nil, fmt.Errorf("update pipeline: %w", err)
	}
	p.Name, p.Status = in.Name, in.Status
	s.publish(ctx, queue.PipelineUpdated, p)
	return p, nil
}

// Delete removes a pipeline owned by principal.
func (s *PipelineService) Delete(ctx context.Context, store PipelineStore, principal *model.User, id uint64) error {
	p, err := s.Get(ctx, store, principal, id)
	if err != nil {
		return err
	}
	if err := store.DeleteByIDAndOwner(ctx, id, principal.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFoundOrUnauthorized
		}
		return fmt.Errorf("delete pipeline: %w", err)
	}
	s.publish(ctx, queue.PipelineDeleted, p)
	return nil
}

// publishTimeout bounds the whole broker exchange of one event.
const publishTimeout = 3 * time.Second

// publish is best-effort: a broker failure never fails the request.
func (s *PipelineService) publish(ctx context.Context, typ string, p *model.Pipeline) {
	ev := queue.NewPipelineEvent(typ, p.ID, p.OwnerID, p.OwnerUsername, p.Name, p.Status)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Debug("pipeline event dropped", "type", typ, "pipeline_id", p.ID, "err", err)
	}
}
