package controllers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/events"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/middleware"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/repository"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/utils"
)

// QuestController exposes quest reads and the participation mutations that
// feed the progress engine. Mutations are persisted first and then announced
// on the quest bus; derived progress is updated by the bus subscribers.
type QuestController struct {
	quests        repository.QuestStore
	contributers  repository.ContributerStore
	contributions repository.ContributionStore
	cache         QuestReader
	progress      Syncer
	bus           Publisher
	logger        *log.Logger
}

func NewQuestController(stores repository.Stores, cache QuestReader, progress Syncer, bus Publisher, logger *log.Logger) *QuestController {
	if logger == nil {
		logger = log.Default()
	}
	return &QuestController{
		quests:        stores.Quests,
		contributers:  stores.Contributers,
		contributions: stores.Contributions,
		cache:         cache,
		progress:      progress,
		bus:           bus,
		logger:        logger,
	}
}

type stepRequest struct {
	Type        models.StepType `json:"type"`
	Title       string          `json:"title"`
	TargetValue *int            `json:"targetValue"`
}

type createQuestRequest struct {
	Title            string        `json:"title" validate:"required,max=255"`
	Description      string        `json:"description" validate:"max=5000"`
	AchievementID    *uint         `json:"achievementId"`
	ExperienceReward int           `json:"experienceReward" validate:"min=0,max=1000000"`
	Steps            []stepRequest `json:"steps"`
}

func (req createQuestRequest) steps() ([]models.Step, error) {
	seen := make(map[models.StepType]bool)
	out := make([]models.Step, 0, len(req.Steps))
	for _, s := range req.Steps {
		if !s.Type.Valid() {
			return nil, fmt.Errorf("unknown step type %q", s.Type)
		}
		if seen[s.Type] {
			return nil, fmt.Errorf("duplicate step type %q", s.Type)
		}
		seen[s.Type] = true
		step := models.Step{Type: s.Type, Title: s.Title}
		if s.TargetValue != nil {
			if *s.TargetValue < 0 {
				return nil, fmt.Errorf("targetValue of %q must not be negative", s.Type)
			}
			t := *s.TargetValue
			step.Requirement = &models.Requirement{TargetValue: &t}
		}
		out = append(out, step)
	}
	return out, nil
}

// Create handles POST /v1/quests. The caller becomes the owner.
func (c *QuestController) Create(w http.ResponseWriter, r *http.Request) {
	var req createQuestRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	steps, err := req.steps()
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Validation failed", Data: err.Error()})
		return
	}
	owner, _ := utils.GetUserID(r)
	q := models.Quest{
		Title:            req.Title,
		Description:      req.Description,
		Status:           models.QuestActive,
		OwnerID:          owner,
		AchievementID:    req.AchievementID,
		ExperienceReward: req.ExperienceReward,
		Steps:            steps,
	}
	if err := c.quests.Create(r.Context(), &q); err != nil {
		writeFailure(w, r, c.logger, "quest/create", err)
		return
	}
	utils.WriteOK(w, http.StatusCreated, "Quest created", q.Snapshot())
}

// Get handles GET /v1/quests/{id}.
func (c *QuestController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid quest id")
		return
	}
	snap, err := c.cache.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, r, c.logger, "quest/get", err)
		return
	}
	utils.WriteOK(w, http.StatusOK, "Successfully", snap)
}

type syncRequest struct {
	StepType string `json:"stepType" validate:"required,oneof=finance material contributers no_required"`
}

// Sync handles POST /v1/quests/{id}/sync: a synchronous recompute of one step
// whose validation failures are returned to the caller as 422.
func (c *QuestController) Sync(w http.ResponseWriter, r *http.Request) {
	snap, ok := c.managedQuest(w, r)
	if !ok {
		return
	}
	var req syncRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	value, err := c.progress.Sync(r.Context(), snap.ID, models.StepType(req.StepType))
	if err != nil {
		writeFailure(w, r, c.logger, "quest/sync", err)
		return
	}
	fresh, err := c.cache.Refresh(r.Context(), snap.ID)
	if err != nil {
		writeFailure(w, r, c.logger, "quest/sync", err)
		return
	}
	utils.WriteOK(w, http.StatusOK, "Synchronized", map[string]interface{}{
		"currentValue": value,
		"quest":        fresh,
	})
}

type contributionRequest struct {
	StepType string `json:"stepType" validate:"required,oneof=finance material"`
	Amount   int    `json:"amount" validate:"required,min=1,max=1000000000"`
}

// AddContribution handles POST /v1/quests/{id}/contributions.
func (c *QuestController) AddContribution(w http.ResponseWriter, r *http.Request) {
	snap, ok := c.activeQuest(w, r)
	if !ok {
		return
	}
	var req contributionRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	stepType := models.StepType(req.StepType)
	if _, found := snap.Step(stepType); !found {
		utils.WriteError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Quest has no %s step", stepType))
		return
	}
	uid, _ := utils.GetUserID(r)
	entry := models.Contribution{QuestID: snap.ID, StepType: stepType, UserID: uid, Amount: req.Amount}
	if err := c.contributions.Add(r.Context(), &entry); err != nil {
		writeFailure(w, r, c.logger, "quest/contribute", err)
		return
	}
	c.bus.Publish(events.New(events.StepVolunteerAdded, snap.ID, uid, map[string]interface{}{
		"stepType": string(stepType),
		"amount":   req.Amount,
	}))
	utils.WriteOK(w, http.StatusCreated, "Contribution recorded", entry)
}

// Join handles POST /v1/quests/{id}/contributers. The participant stays
// unconfirmed, so progress does not move yet.
func (c *QuestController) Join(w http.ResponseWriter, r *http.Request) {
	snap, ok := c.activeQuest(w, r)
	if !ok {
		return
	}
	uid, _ := utils.GetUserID(r)
	row, err := c.contributers.Join(r.Context(), snap.ID, uid)
	if err != nil {
		writeFailure(w, r, c.logger, "quest/join", err)
		return
	}
	utils.WriteOK(w, http.StatusCreated, "Joined", row)
}

// Confirm handles POST /v1/quests/{id}/contributers/{userId}/confirm.
func (c *QuestController) Confirm(w http.ResponseWriter, r *http.Request) {
	c.confirm(w, r, events.ContributerAdded, "Contributer confirmed")
}

// Checkin handles POST /v1/quests/{id}/contributers/{userId}/checkin. A
// check-in also confirms the participant.
func (c *QuestController) Checkin(w http.ResponseWriter, r *http.Request) {
	c.confirm(w, r, events.CheckinConfirmed, "Check-in confirmed")
}

func (c *QuestController) confirm(w http.ResponseWriter, r *http.Request, t events.Type, message string) {
	snap, ok := c.managedQuest(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(r, "userId")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if err := c.contributers.Confirm(r.Context(), snap.ID, userID); err != nil {
		writeFailure(w, r, c.logger, "quest/confirm", err)
		return
	}
	c.bus.Publish(events.New(t, snap.ID, userID, map[string]interface{}{
		"stepType": string(models.StepContributers),
	}))
	utils.WriteOK(w, http.StatusOK, message, nil)
}

// Remove handles DELETE /v1/quests/{id}/contributers/{userId}. Participants
// may remove themselves; owners and admins may remove anyone.
func (c *QuestController) Remove(w http.ResponseWriter, r *http.Request) {
	snap, ok := c.activeQuest(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(r, "userId")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if caller, _ := utils.GetUserID(r); caller != userID && !canManage(r, snap) {
		utils.WriteError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err := c.contributers.Remove(r.Context(), snap.ID, userID); err != nil {
		writeFailure(w, r, c.logger, "quest/remove", err)
		return
	}
	c.bus.Publish(events.New(events.ContributerRemoved, snap.ID, userID, map[string]interface{}{
		"stepType": string(models.StepContributers),
	}))
	utils.WriteOK(w, http.StatusOK, "Contributer removed", nil)
}

// Complete handles POST /v1/quests/{id}/complete. Steps are recomputed from
// the source records first, so a confirmation whose event has not been
// handled yet still counts. Every step must have met its target; each
// confirmed contributer then gets a quest_completed event.
func (c *QuestController) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid quest id")
		return
	}
	ctx := r.Context()
	snap, found, err := c.quests.FindQuestWithDetails(ctx, id)
	if err != nil {
		writeFailure(w, r, c.logger, "quest/complete", err)
		return
	}
	if !found {
		utils.WriteError(w, http.StatusNotFound, "Quest not found")
		return
	}
	if !canManage(r, snap) {
		utils.WriteError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if snap.Status == models.QuestCompleted {
		utils.WriteError(w, http.StatusConflict, "Quest already completed")
		return
	}
	changed, err := c.progress.Recompute(ctx, &snap)
	if err != nil {
		writeFailure(w, r, c.logger, "quest/complete", err)
		return
	}
	if changed {
		if err := c.quests.UpdateQuestSteps(ctx, id, snap.Steps); err != nil {
			writeFailure(w, r, c.logger, "quest/complete", err)
			return
		}
	}
	for _, s := range snap.Steps {
		if !s.Complete() {
			utils.WriteError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Step %s has not reached its target", s.Type))
			return
		}
	}

	users, err := c.contributers.ConfirmedUsers(ctx, id)
	if err != nil {
		writeFailure(w, r, c.logger, "quest/complete", err)
		return
	}
	if err := c.quests.SetStatus(ctx, id, models.QuestCompleted); err != nil {
		writeFailure(w, r, c.logger, "quest/complete", err)
		return
	}
	for _, uid := range users {
		data := map[string]interface{}{"experienceReward": snap.ExperienceReward}
		if snap.AchievementID != nil {
			data["achievementId"] = *snap.AchievementID
		}
		c.bus.Publish(events.New(events.QuestCompleted, id, uid, data))
	}
	if _, err := c.cache.Refresh(ctx, id); err != nil {
		c.logger.Printf("[quest/complete] refresh cache of quest %d: %v", id, err)
	}
	utils.WriteOK(w, http.StatusOK, "Quest completed", map[string]interface{}{"notified": len(users)})
}

func (c *QuestController) activeQuest(w http.ResponseWriter, r *http.Request) (models.QuestSnapshot, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid quest id")
		return models.QuestSnapshot{}, false
	}
	snap, err := c.cache.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, r, c.logger, "quest", err)
		return models.QuestSnapshot{}, false
	}
	if snap.Status != models.QuestActive {
		utils.WriteError(w, http.StatusConflict, "Quest is not active")
		return models.QuestSnapshot{}, false
	}
	return snap, true
}

func (c *QuestController) managedQuest(w http.ResponseWriter, r *http.Request) (models.QuestSnapshot, bool) {
	snap, ok := c.activeQuest(w, r)
	if !ok {
		return snap, false
	}
	if !canManage(r, snap) {
		utils.WriteError(w, http.StatusForbidden, "Forbidden")
		return models.QuestSnapshot{}, false
	}
	return snap, true
}
