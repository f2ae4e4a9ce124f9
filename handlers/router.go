package handlers

import (
	"net/http"

	"collabspace/middleware"
	"collabspace/services"

	"github.com/gorilla/mux"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth          *services.AuthService
	Users         *services.UserService
	Teams         *services.TeamService
	Projects      *services.ProjectService
	Tasks         *services.TaskService
	Dashboard     *services.DashboardService
	Notifications *services.NotificationService
	Watcher       *services.VisibilityWatcher
}

func NewRouter(s Services, corsOrigin string) http.Handler {
	loginHandler := NewLoginHandler(s.Auth)
	userHandler := NewUserHandler(s.Users)
	teamHandler := NewTeamHandler(s.Teams)
	projectHandler := NewProjectHandler(s.Projects)
	taskHandler := NewTaskHandler(s.Tasks)
	dashboardHandler := NewDashboardHandler(s.Dashboard)
	notificationHandler := NewNotificationHandler(s.Notifications)
	streamHandler := NewStreamHandler(s.Watcher)

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", loginHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", loginHandler.SignIn).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.JWTAuthMiddleware(s.Auth))

	protected.HandleFunc("/auth/me", loginHandler.Me).Methods(http.MethodGet)

	protected.HandleFunc("/users", userHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/users/active", userHandler.ListActive).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", userHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", userHandler.Update).Methods(http.MethodPut)
	protected.HandleFunc("/users/{id}", userHandler.Delete).Methods(http.MethodDelete)

	protected.HandleFunc("/teams", teamHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/teams", teamHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc("/teams/{id}", teamHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/teams/{id}", teamHandler.Update).Methods(http.MethodPut)
	protected.HandleFunc("/teams/{id}", teamHandler.Delete).Methods(http.MethodDelete)
	protected.HandleFunc("/teams/{id}/cascade", teamHandler.CascadePreview).Methods(http.MethodGet)
	protected.HandleFunc("/teams/{id}/members", teamHandler.AddMember).Methods(http.MethodPost)
	protected.HandleFunc("/teams/{id}/members/{userId}", teamHandler.RemoveMember).Methods(http.MethodDelete)

	protected.HandleFunc("/projects", projectHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/projects", projectHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc("/projects/{id}", projectHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/projects/{id}", projectHandler.Delete).Methods(http.MethodDelete)
	protected.HandleFunc("/projects/{id}/members", projectHandler.Members).Methods(http.MethodGet)
	protected.HandleFunc("/projects/{id}/tasks", taskHandler.Create).Methods(http.MethodPost)

	protected.HandleFunc("/tasks/{id}/status", taskHandler.SetStatus).Methods(http.MethodPut)
	protected.HandleFunc("/tasks/{id}", taskHandler.Delete).Methods(http.MethodDelete)

	protected.HandleFunc("/dashboard", dashboardHandler.Stats).Methods(http.MethodGet)
	protected.HandleFunc("/visibility/stream", streamHandler.Visibility).Methods(http.MethodGet)

	protected.HandleFunc("/notifications", notificationHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkRead).Methods(http.MethodPut)
	protected.HandleFunc("/notifications/{id}", notificationHandler.Delete).Methods(http.MethodDelete)

	return middleware.RequestLogger(middleware.EnableCORS(corsOrigin)(r))
}
