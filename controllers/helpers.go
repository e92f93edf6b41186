package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/events"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/leveling"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/progress"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/repository"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/utils"
)

const msgInternal = "Internal server error, please try again"

type QuestReader interface {
	Get(ctx context.Context, questID uint) (models.QuestSnapshot, error)
	Refresh(ctx context.Context, questID uint) (models.QuestSnapshot, error)
}

type Syncer interface {
	Sync(ctx context.Context, questID uint, stepType models.StepType) (int, error)
	Recompute(ctx context.Context, snap *models.QuestSnapshot) (bool, error)
}

type Publisher interface {
	Publish(ev events.Event)
}

type LevelReader interface {
	Get(ctx context.Context, userID uint) (leveling.Progress, error)
}

func pathID(r *http.Request, name string) (uint, bool) {
	n, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// canManage reports whether the caller owns the quest or is an admin.
func canManage(r *http.Request, snap models.QuestSnapshot) bool {
	if utils.GetUserRole(r) == "admin" {
		return true
	}
	uid, ok := utils.GetUserID(r)
	return ok && uid == snap.OwnerID
}

// writeFailure maps engine and store errors to HTTP statuses. Anything
// unrecognised is logged and reported as a generic 500.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *log.Logger, tag string, err error) {
	switch {
	case errors.Is(err, progress.ErrQuestNotFound):
		utils.WriteError(w, http.StatusNotFound, "Quest not found")
	case errors.Is(err, repository.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, repository.ErrConflict):
		utils.WriteError(w, http.StatusConflict, "Already exists")
	case errors.Is(err, progress.ErrValidation):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.APIResponse{Success: false, Message: "Quest cannot be synchronized", Data: err.Error()})
	default:
		logger.Printf("[%s] %s %s: %v rid=%s", tag, r.Method, r.URL.Path, err, utils.GetRequestID(r))
		utils.WriteError(w, http.StatusInternalServerError, msgInternal)
	}
}
