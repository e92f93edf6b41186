// Package progress derives the current value of quest step requirements from
// their source records and writes it back to the quest.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/events"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

var (
	// ErrValidation is the parent of every caller-visible input failure.
	ErrValidation = errors.New("validation failed")

	ErrQuestNotFound      = errors.New("quest not found")
	ErrNoSteps            = fmt.Errorf("%w: quest has no steps", ErrValidation)
	ErrStepNotFound       = fmt.Errorf("%w: step not found", ErrValidation)
	ErrRequirementMissing = fmt.Errorf("%w: step has no requirement or target value", ErrValidation)
	ErrUnsyncableStep     = fmt.Errorf("%w: step type has no source records", ErrValidation)
)

type QuestStore interface {
	FindQuestWithDetails(ctx context.Context, questID uint) (models.QuestSnapshot, bool, error)
	UpdateQuestSteps(ctx context.Context, questID uint, steps []models.Step) error
}

type ContributerCounter interface {
	ConfirmedCount(ctx context.Context, questID uint) (int, error)
}

type ContributionSummer interface {
	Sum(ctx context.Context, questID uint, stepType models.StepType) (int, error)
}

type Publisher interface {
	Publish(ev events.Event)
}

type Aggregator struct {
	quests        QuestStore
	contributers  ContributerCounter
	contributions ContributionSummer
	bus           Publisher
	logger        *log.Logger
}

func NewAggregator(quests QuestStore, contributers ContributerCounter, contributions ContributionSummer, bus Publisher, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		quests:        quests,
		contributers:  contributers,
		contributions: contributions,
		bus:           bus,
		logger:        logger,
	}
}

// Compute returns the aggregate a step of the given type should carry.
func (a *Aggregator) Compute(ctx context.Context, questID uint, stepType models.StepType) (int, error) {
	switch stepType {
	case models.StepContributers:
		n, err := a.contributers.ConfirmedCount(ctx, questID)
		if err != nil {
			return 0, fmt.Errorf("count contributers of quest %d: %w", questID, err)
		}
		return n, nil
	case models.StepFinance, models.StepMaterial:
		n, err := a.contributions.Sum(ctx, questID, stepType)
		if err != nil {
			return 0, fmt.Errorf("sum %s contributions of quest %d: %w", stepType, questID, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsyncableStep, stepType)
	}
}

// Sync recomputes one step of a quest, persists it when the value moved and
// announces the new step list with requirement_updated.
func (a *Aggregator) Sync(ctx context.Context, questID uint, stepType models.StepType) (int, error) {
	snap, ok, err := a.quests.FindQuestWithDetails(ctx, questID)
	if err != nil {
		return 0, fmt.Errorf("load quest %d: %w", questID, err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrQuestNotFound, questID)
	}
	if len(snap.Steps) == 0 {
		return 0, ErrNoSteps
	}

	steps := models.CloneSteps(snap.Steps)
	idx := -1
	for i := range steps {
		if steps[i].Type == stepType {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q", ErrStepNotFound, stepType)
	}
	req := steps[idx].Requirement
	if req == nil || req.TargetValue == nil {
		return 0, fmt.Errorf("%w: %q", ErrRequirementMissing, stepType)
	}

	value, err := a.Compute(ctx, questID, stepType)
	if err != nil {
		return 0, err
	}
	if req.CurrentValue != value {
		req.CurrentValue = value
		if err := a.quests.UpdateQuestSteps(ctx, questID, steps); err != nil {
			return 0, fmt.Errorf("store steps of quest %d: %w", questID, err)
		}
	}

	if a.bus != nil {
		a.bus.Publish(events.New(events.RequirementUpdated, questID, 0, map[string]interface{}{
			"steps":        models.CloneSteps(steps),
			"stepType":     string(stepType),
			"currentValue": value,
		}))
	}
	return value, nil
}

// Recompute refreshes every syncable step of snap in place, computing each
// distinct step type once. It reports whether any value changed.
func (a *Aggregator) Recompute(ctx context.Context, snap *models.QuestSnapshot) (bool, error) {
	computed := make(map[models.StepType]int)
	changed := false
	for i := range snap.Steps {
		step := &snap.Steps[i]
		if step.Requirement == nil {
			continue
		}
		value, done := computed[step.Type]
		if !done {
			v, err := a.Compute(ctx, snap.ID, step.Type)
			if errors.Is(err, ErrUnsyncableStep) {
				continue
			}
			if err != nil {
				return false, err
			}
			computed[step.Type] = v
			value = v
		}
		if step.Requirement.CurrentValue != value {
			step.Requirement.CurrentValue = value
			changed = true
		}
	}
	return changed, nil
}
