package routes

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/config"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/controllers"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/middleware"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/utils"
)

type Deps struct {
	Config       config.Config
	Quests       *controllers.QuestController
	Users        *controllers.UserController
	Achievements *controllers.AchievementController
	Tokens       *utils.TokenIssuer
	WriteLimiter *middleware.RateLimiter
	Logger       *log.Logger
}

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "quest-api",
	})
}

// InitRouter builds the HTTP surface. Every /v1 route requires a bearer
// token; mutating routes are additionally rate limited per caller.
func InitRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recovery(d.Logger),
		middleware.RequestLog(d.Logger),
		middleware.SecurityHeaders(d.Config.Env),
	)

	r.HandleFunc("/health", health).Methods(http.MethodGet)

	origins := d.Config.HTTP.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	r.Use(handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID"}),
		handlers.AllowCredentials(),
	))

	api := r.PathPrefix("/v1").Subrouter()
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)
	api.Use(
		middleware.MaxBody(d.Config.HTTP.MaxBodyBytes),
		middleware.Timeout(time.Duration(d.Config.HTTP.RequestTimeoutSec)*time.Second),
		middleware.Auth(d.Tokens),
	)

	write := func(h http.HandlerFunc) http.Handler {
		if d.WriteLimiter == nil {
			return h
		}
		return d.WriteLimiter.Middleware(h)
	}

	q := d.Quests
	api.Handle("/quests", write(q.Create)).Methods(http.MethodPost)
	api.HandleFunc("/quests/{id:[0-9]+}", q.Get).Methods(http.MethodGet)
	api.Handle("/quests/{id:[0-9]+}/sync", write(q.Sync)).Methods(http.MethodPost)
	api.Handle("/quests/{id:[0-9]+}/contributions", write(q.AddContribution)).Methods(http.MethodPost)
	api.Handle("/quests/{id:[0-9]+}/contributers", write(q.Join)).Methods(http.MethodPost)
	api.Handle("/quests/{id:[0-9]+}/contributers/{userId:[0-9]+}/confirm", write(q.Confirm)).Methods(http.MethodPost)
	api.Handle("/quests/{id:[0-9]+}/contributers/{userId:[0-9]+}/checkin", write(q.Checkin)).Methods(http.MethodPost)
	api.Handle("/quests/{id:[0-9]+}/contributers/{userId:[0-9]+}", write(q.Remove)).Methods(http.MethodDelete)
	api.Handle("/quests/{id:[0-9]+}/complete", write(q.Complete)).Methods(http.MethodPost)

	u := d.Users
	api.HandleFunc("/users/{id:[0-9]+}/level", u.Level).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/achievements", u.Achievements).Methods(http.MethodGet)

	admin := middleware.RequireRole("admin")
	api.Handle("/achievements", admin(write(d.Achievements.Create))).Methods(http.MethodPost)

	return r
}
