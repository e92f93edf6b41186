// Package orchestrator reacts to quest events: it awards achievements once
// per user, grants experience for awarded achievements and keeps quest
// progress and the quest cache fresh after participation changes.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/events"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/leveling"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/progress"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/repository"
)

// Outcome is the terminal state of one quest_completed event.
type Outcome int

const (
	NoAchievement Outcome = iota
	Awarded
	AlreadyAwarded
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NoAchievement:
		return "no_achievement"
	case Awarded:
		return "awarded"
	case AlreadyAwarded:
		return "already_awarded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// AchievementGranter must reject a repeated grant with repository.ErrConflict
// and an unknown achievement with repository.ErrNotFound. questID 0 records
// a grant without a quest.
type AchievementGranter interface {
	AssignToUser(ctx context.Context, userID, achievementID, questID uint) (models.UserAchievement, error)
}

type Syncer interface {
	Sync(ctx context.Context, questID uint, stepType models.StepType) (int, error)
}

type QuestCache interface {
	Refresh(ctx context.Context, questID uint) (models.QuestSnapshot, error)
}

type ExperienceGranter interface {
	AddExperience(ctx context.Context, userID uint, amount int) (leveling.Progress, error)
}

// Bus is the part of events.Bus the orchestrator needs.
type Bus interface {
	Publish(ev events.Event)
	Handle(name string, pred events.Predicate, h events.Handler) *events.Subscription
}

type Deps struct {
	QuestBus       Bus
	AchievementBus Bus
	Achievements   AchievementGranter
	Progress       Syncer
	Cache          QuestCache
	Experience     ExperienceGranter
	Logger         *log.Logger
}

type Orchestrator struct {
	questBus       Bus
	achievementBus Bus
	achievements   AchievementGranter
	progress       Syncer
	cache          QuestCache
	experience     ExperienceGranter
	logger         *log.Logger

	mu   sync.Mutex
	subs []*events.Subscription
}

func New(d Deps) *Orchestrator {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	return &Orchestrator{
		questBus:       d.QuestBus,
		achievementBus: d.AchievementBus,
		achievements:   d.Achievements,
		progress:       d.Progress,
		cache:          d.Cache,
		experience:     d.Experience,
		logger:         d.Logger,
	}
}

var progressEvents = []events.Type{
	events.ContributerAdded,
	events.ContributerRemoved,
	events.StepVolunteerAdded,
	events.CheckinConfirmed,
}

// Start subscribes the handlers. Calling it twice is a no-op.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs != nil {
		return
	}
	o.subs = append(o.subs,
		o.questBus.Handle("orchestrator.quest_completed", events.OfType(events.QuestCompleted),
			func(ctx context.Context, ev events.Event) error {
				o.HandleQuestCompleted(ctx, ev)
				return nil
			}),
		o.questBus.Handle("orchestrator.progress", events.OfType(progressEvents...),
			func(ctx context.Context, ev events.Event) error {
				o.HandleProgressChange(ctx, ev)
				return nil
			}),
	)
	if o.achievementBus != nil && o.experience != nil {
		o.subs = append(o.subs, o.achievementBus.Handle("orchestrator.experience", events.OfType(events.AchievementAwarded),
			func(ctx context.Context, ev events.Event) error {
				o.HandleAchievementAwarded(ctx, ev)
				return nil
			}))
	}
}

func (o *Orchestrator) Stop() {
	o.mu.Lock()
	subs := o.subs
	o.subs = nil
	o.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

// HandleQuestCompleted awards the quest's achievement to the event's user.
// A repeated completion for the same user ends in AlreadyAwarded without
// emitting anything.
func (o *Orchestrator) HandleQuestCompleted(ctx context.Context, ev events.Event) Outcome {
	achievementID, ok := ev.Uint("achievementId")
	if !ok || achievementID == 0 {
		return NoAchievement
	}
	if ev.UserID == 0 {
		o.logger.Printf("[warn] [orchestrator] quest %d completed without a user, achievement %d not awarded", ev.QuestID, achievementID)
		return Skipped
	}

	_, err := o.achievements.AssignToUser(ctx, ev.UserID, achievementID, ev.QuestID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrConflict):
		return AlreadyAwarded
	case errors.Is(err, repository.ErrNotFound):
		o.logger.Printf("[warn] [orchestrator] achievement %d of quest %d does not exist, user %d not awarded", achievementID, ev.QuestID, ev.UserID)
		return Skipped
	default:
		o.logger.Printf("[orchestrator] award achievement %d to user %d for quest %d: %v", achievementID, ev.UserID, ev.QuestID, err)
		return Failed
	}

	if o.achievementBus != nil {
		o.achievementBus.Publish(events.New(events.AchievementAwarded, ev.QuestID, ev.UserID, map[string]interface{}{
			"userId":           ev.UserID,
			"achievementId":    achievementID,
			"questId":          ev.QuestID,
			"experienceReward": ev.Int("experienceReward"),
		}))
	}
	return Awarded
}

// HandleProgressChange re-syncs the affected step and repopulates the cache.
// Failures are logged and never returned.
func (o *Orchestrator) HandleProgressChange(ctx context.Context, ev events.Event) {
	stepType := models.StepType(ev.String("stepType"))
	if stepType == "" {
		stepType = models.StepContributers
	}

	if _, err := o.progress.Sync(ctx, ev.QuestID, stepType); err != nil {
		if errors.Is(err, progress.ErrValidation) || errors.Is(err, progress.ErrQuestNotFound) {
			o.logger.Printf("[warn] [orchestrator] %s on quest %d: sync %s skipped: %v", ev.Type, ev.QuestID, stepType, err)
		} else {
			o.logger.Printf("[orchestrator] %s on quest %d: sync %s: %v", ev.Type, ev.QuestID, stepType, err)
		}
	}

	if o.cache == nil {
		return
	}
	if _, err := o.cache.Refresh(ctx, ev.QuestID); err != nil && !errors.Is(err, progress.ErrQuestNotFound) {
		o.logger.Printf("[orchestrator] refresh cache of quest %d: %v", ev.QuestID, err)
	}
}

// HandleAchievementAwarded grants the experience reward carried by an
// achievement_awarded event. This is the only place experience is granted
// for quest completion.
func (o *Orchestrator) HandleAchievementAwarded(ctx context.Context, ev events.Event) error {
	reward := ev.Int("experienceReward")
	if reward == 0 || ev.UserID == 0 {
		return nil
	}
	p, err := o.experience.AddExperience(ctx, ev.UserID, reward)
	if err != nil {
		o.logger.Printf("[orchestrator] grant %d xp to user %d for quest %d: %v", reward, ev.UserID, ev.QuestID, err)
		return err
	}
	o.logger.Printf("[orchestrator] user %d +%d xp for quest %d (level %d)", ev.UserID, reward, ev.QuestID, p.Level)
	return nil
}
