package controllers

import (
	"log"
	"net/http"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/repository"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/utils"
)

type UserController struct {
	achievements repository.AchievementStore
	levels       LevelReader
	logger       *log.Logger
}

func NewUserController(achievements repository.AchievementStore, levels LevelReader, logger *log.Logger) *UserController {
	if logger == nil {
		logger = log.Default()
	}
	return &UserController{achievements: achievements, levels: levels, logger: logger}
}

// Level handles GET /v1/users/{id}/level.
func (c *UserController) Level(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	p, err := c.levels.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, r, c.logger, "user/level", err)
		return
	}
	utils.WriteOK(w, http.StatusOK, "Successfully", p)
}

// Achievements handles GET /v1/users/{id}/achievements.
func (c *UserController) Achievements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	list, err := c.achievements.ListForUser(r.Context(), id)
	if err != nil {
		writeFailure(w, r, c.logger, "user/achievements", err)
		return
	}
	if list == nil {
		list = []models.UserAchievement{}
	}
	utils.WriteOK(w, http.StatusOK, "Successfully", map[string]interface{}{"achievements": list})
}
