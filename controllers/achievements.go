package controllers

import (
	"log"
	"net/http"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/middleware"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/repository"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/utils"
)

type AchievementController struct {
	achievements repository.AchievementStore
	logger       *log.Logger
}

func NewAchievementController(achievements repository.AchievementStore, logger *log.Logger) *AchievementController {
	if logger == nil {
		logger = log.Default()
	}
	return &AchievementController{achievements: achievements, logger: logger}
}

type achievementRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Icon        string `json:"icon" validate:"max=255"`
}

// Create handles POST /v1/achievements (admin only).
func (c *AchievementController) Create(w http.ResponseWriter, r *http.Request) {
	var req achievementRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	a := models.Achievement{Title: req.Title, Description: req.Description, Icon: req.Icon}
	if err := c.achievements.Create(r.Context(), &a); err != nil {
		writeFailure(w, r, c.logger, "achievement/create", err)
		return
	}
	utils.WriteOK(w, http.StatusCreated, "Achievement created", a)
}
