package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/api/recovery"
	"github.com/himawari-tools/line-secretary/internal/api/respond"
	"github.com/himawari-tools/line-secretary/internal/services"
)

// HealthReporter exposes the service health flag for GET /health.
type HealthReporter interface {
	IsHealthy() bool
}

// RouterConfig wires the LIFF API router.
type RouterConfig struct {
	Verifier  TokenVerifier
	Users     *services.UserService
	Groups    *services.GroupService
	Warikans  *services.WarikanService
	Schedules *services.ScheduleService
	Memos     *services.MemoService
	Health    HealthReporter
	Log       zerolog.Logger
}

// NewRouter builds the LIFF API routes. /health and /metrics are open;
// everything under /api requires a Bearer LINE ID token.
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(recovery.Middleware(cfg.Log))
	router.Use(RequestLog(cfg.Log))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil && !cfg.Health.IsHealthy() {
			respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	userHandler := NewUserHandler(cfg.Users, cfg.Groups)
	warikanHandler := NewWarikanHandler(cfg.Warikans)
	scheduleHandler := NewScheduleHandler(cfg.Schedules)
	memoHandler := NewMemoHandler(cfg.Memos)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(AuthMiddleware(cfg.Verifier, cfg.Users, cfg.Log))

	// User endpoints
	apiRouter.HandleFunc("/user/profile", userHandler.GetProfile).Methods("GET")
	apiRouter.HandleFunc("/user/settings", userHandler.UpdateSettings).Methods("PATCH")
	apiRouter.HandleFunc("/user/usage", userHandler.GetUsage).Methods("GET")
	apiRouter.HandleFunc("/user/groups", userHandler.ListGroups).Methods("GET")

	// Warikan endpoints
	apiRouter.HandleFunc("/warikan", warikanHandler.List).Methods("GET")
	apiRouter.HandleFunc("/warikan", warikanHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/warikan/{warikanId}", warikanHandler.Get).Methods("GET")
	apiRouter.HandleFunc("/warikan/{warikanId}/status", warikanHandler.UpdateStatus).Methods("PATCH")
	apiRouter.HandleFunc("/warikan/{warikanId}/pay", warikanHandler.Pay).Methods("PATCH")

	// Schedule endpoints
	apiRouter.HandleFunc("/schedule", scheduleHandler.List).Methods("GET")
	apiRouter.HandleFunc("/schedule", scheduleHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/schedule/{scheduleId}", scheduleHandler.Get).Methods("GET")
	apiRouter.HandleFunc("/schedule/{scheduleId}", scheduleHandler.Update).Methods("PATCH")
	apiRouter.HandleFunc("/schedule/{scheduleId}", scheduleHandler.Delete).Methods("DELETE")
	apiRouter.HandleFunc("/schedule/{scheduleId}/status", scheduleHandler.UpdateStatus).Methods("PATCH")

	// Personal memo endpoints
	apiRouter.HandleFunc("/memos/personal", memoHandler.ListPersonal).Methods("GET")
	apiRouter.HandleFunc("/memos/personal", memoHandler.CreatePersonal).Methods("POST")
	apiRouter.HandleFunc("/memos/personal/{memoId}", memoHandler.GetPersonal).Methods("GET")
	apiRouter.HandleFunc("/memos/personal/{memoId}", memoHandler.UpdatePersonal).Methods("PATCH")
	apiRouter.HandleFunc("/memos/personal/{memoId}", memoHandler.DeletePersonal).Methods("DELETE")

	// Shared memo endpoints
	apiRouter.HandleFunc("/memos/shared", memoHandler.ListShared).Methods("GET")
	apiRouter.HandleFunc("/memos/shared", memoHandler.CreateShared).Methods("POST")
	apiRouter.HandleFunc("/memos/shared/{memoId}", memoHandler.GetShared).Methods("GET")
	apiRouter.HandleFunc("/memos/shared/{memoId}", memoHandler.UpdateShared).Methods("PATCH")
	apiRouter.HandleFunc("/memos/shared/{memoId}", memoHandler.DeleteShared).Methods("DELETE")

	// Memo page endpoints
	apiRouter.HandleFunc("/memos/pages", memoHandler.ListPages).Methods("GET")
	apiRouter.HandleFunc("/memos/pages", memoHandler.CreatePage).Methods("POST")
	apiRouter.HandleFunc("/memos/pages/{pageId}", memoHandler.UpdatePage).Methods("PATCH")
	apiRouter.HandleFunc("/memos/pages/{pageId}", memoHandler.DeletePage).Methods("DELETE")

	return router
}
