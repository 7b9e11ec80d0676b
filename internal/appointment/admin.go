package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BlockedDateRequest struct {
	Date     Date   `json:"date"`
	Reason   string `json:"reason" validate:"required_if=Active true,max=200"`
	Category string `json:"category" validate:"max=100"`
	Active   bool   `json:"active"`
	Actor    string `json:"created_by" validate:"max=100"`
}

// SetBlockedDate blocks or unblocks a date. At most one active entry exists per date:
// blocking an already blocked date updates that entry in place.
func (s *Service) SetBlockedDate(ctx context.Context, req BlockedDateRequest) (*BlockedDate, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	req.Category = strings.TrimSpace(req.Category)
	var extra map[string]string
	if req.Date.IsZero() {
		extra = map[string]string{"date": "is required"}
	}
	if err := validateStruct(req, extra); err != nil {
		return nil, err
	}
	if req.Actor == "" {
		req.Actor = "system"
	}

	var saved *BlockedDate
	err := s.locker.WithLock(ctx, "blocked:"+req.Date.String(), func(lockCtx context.Context) error {
		existing, err := s.repo.ActiveBlockedDate(lockCtx, req.Date)
		if err != nil && !errors.Is(err, ErrBlockedDateNotFound) {
			return fmt.Errorf("load blocked date: %w", err)
		}

		now := s.clock.Now()
		switch {
		case req.Active && existing != nil:
			existing.Reason = req.Reason
			existing.Category = req.Category
			existing.UpdatedAt = now
			saved = existing
		case req.Active:
			saved = &BlockedDate{
				ID:        uuid.New(),
				Date:      req.Date,
				Reason:    req.Reason,
				Category:  req.Category,
				Active:    true,
				CreatedBy: req.Actor,
				CreatedAt: now,
				UpdatedAt: now,
			}
		case existing == nil:
			return fmt.Errorf("%w: %s is not blocked", ErrBlockedDateNotFound, req.Date)
		default:
			existing.Active = false
			existing.UpdatedAt = now
			saved = existing
		}

		if err := s.repo.SaveBlockedDate(lockCtx, saved); err != nil {
			return fmt.Errorf("save blocked date: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := EventDateBlocked
	if !saved.Active {
		event = EventDateUnblocked
	}
	s.logEvent(ctx, nil, event, map[string]any{
		"date":     saved.Date.String(),
		"reason":   saved.Reason,
		"category": saved.Category,
		"actor":    req.Actor,
	})
	s.log.Info("blocked date updated", zap.String("date", saved.Date.String()), zap.Bool("active", saved.Active))

	return saved, nil
}

func (s *Service) ListBlockedDates(ctx context.Context, activeOnly bool) ([]BlockedDate, error) {
	dates, err := s.repo.ListBlockedDates(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list blocked dates: %w", err)
	}
	return dates, nil
}

// UpsertSlotCatalog replaces every slot definition of caseType. An empty list removes the case type.
func (s *Service) UpsertSlotCatalog(ctx context.Context, caseType CaseType, defs []SlotDefinition, actor string) ([]SlotDefinition, error) {
	caseType = CaseType(strings.TrimSpace(string(caseType)))
	if err := ValidateSlotDefinitions(caseType, defs); err != nil {
		return nil, err
	}
	if actor == "" {
		actor = "system"
	}

	now := s.clock.Now()
	stored := make([]SlotDefinition, len(defs))
	for i, d := range defs {
		d.CaseType = caseType
		d.UpdatedBy = actor
		d.UpdatedAt = now
		stored[i] = d
	}
	SortSlots(stored)

	if err := s.repo.ReplaceSlotDefinitions(ctx, caseType, stored); err != nil {
		return nil, fmt.Errorf("replace slot catalog: %w", err)
	}

	s.logEvent(ctx, nil, EventSlotsUpdated, map[string]any{
		"case_type": caseType,
		"count":     len(stored),
		"actor":     actor,
	})

	return stored, nil
}

func (s *Service) ListSlots(ctx context.Context, caseType CaseType) ([]SlotDefinition, error) {
	defs, err := s.repo.ListSlotDefinitions(ctx, caseType)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	SortSlots(defs)
	return defs, nil
}

func (s *Service) CaseTypes(ctx context.Context) ([]CaseType, error) {
	return s.catalog.CaseTypes(ctx)
}
