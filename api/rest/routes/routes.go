package routes

import (
	"log/slog"
	"net/http"

	"container-dispatch/api/rest/handlers"
	"container-dispatch/api/rest/middleware"
	"container-dispatch/core/auth"
	"container-dispatch/core/dispatch"
	"container-dispatch/storage"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
)

// Deps holds everything the API needs
type Deps struct {
	Jobs      *dispatch.Service
	Users     *dispatch.UserService
	Addresses *dispatch.AddressService
	Tokens    *auth.TokenManager

	Uploader       *storage.Uploader
	UploadMaxBytes int64 // per image

	// Files serves stored images under /uploads/; nil when images live elsewhere
	Files http.Handler

	// MetricsHandler serves /metrics; nil disables the endpoint
	MetricsHandler http.Handler
	Metrics        middleware.HTTPMetrics

	Logger      *slog.Logger
	CORSOrigins []string
}

// NewHandler builds the router and wraps it in the outer middleware chain.
// CORS sits outside the router so preflight requests never reach route matching.
func NewHandler(d Deps) http.Handler {
	r := mux.NewRouter()
	SetupRoutes(r, d)

	var h http.Handler = r
	h = middleware.CORS(d.CORSOrigins)(h)
	h = chimw.Recoverer(h)
	h = chimw.RealIP(h)
	h = chimw.RequestID(h)
	return h
}

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)
	r.Use(middleware.RequestLogger(logger, d.Metrics))

	jobHandler := handlers.NewJobHandler(d.Jobs)
	reportHandler := handlers.NewReportHandler(d.Jobs)
	userHandler := handlers.NewUserHandler(d.Users)
	authHandler := handlers.NewAuthHandler(d.Users, d.Tokens)
	addressHandler := handlers.NewAddressHandler(d.Addresses)
	safetyHandler := handlers.NewSafetyFormHandler(d.Jobs)

	// Public endpoints
	r.HandleFunc("/api/health", handlers.Health).Methods("GET")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler).Methods("GET")
	}
	if d.Files != nil {
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", d.Files)).Methods("GET", "HEAD")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Authenticate(d.Tokens))

	// Auth endpoints
	api.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/auth/change-password", authHandler.ChangePassword).Methods("PUT")

	// Job endpoints; fixed paths before /jobs/{id}
	api.HandleFunc("/jobs", jobHandler.CreateJob).Methods("POST")
	api.HandleFunc("/jobs", jobHandler.ListActiveJobs).Methods("GET")
	api.HandleFunc("/jobs/import", jobHandler.ImportJobs).Methods("POST")
	api.HandleFunc("/jobs/unassigned", jobHandler.ListUnassigned).Methods("GET")
	api.HandleFunc("/jobs/completed", jobHandler.ListCompletedJobs).Methods("GET")
	api.HandleFunc("/jobs/user/{userId}", jobHandler.ListDriverJobs).Methods("GET")
	api.HandleFunc("/jobs/user/{userId}/completed", jobHandler.ListDriverCompletedJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", jobHandler.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}", jobHandler.UpdateJob).Methods("PUT")
	api.HandleFunc("/jobs/{id}", jobHandler.DeleteJob).Methods("DELETE")
	api.HandleFunc("/jobs/{id}/assign", jobHandler.AssignDriver).Methods("PUT")
	api.HandleFunc("/jobs/{id}/status", jobHandler.UpdateStatus).Methods("PUT")
	api.HandleFunc("/jobs/{id}/status", jobHandler.GetStatusHistory).Methods("GET")
	api.HandleFunc("/jobs/{id}/proof", jobHandler.SubmitProof).Methods("PUT")

	// Safety form endpoints; /safetyForms/job before /safetyForms/{id}
	api.HandleFunc("/safetyForms", safetyHandler.SubmitSafetyForm).Methods("POST")
	api.HandleFunc("/safetyForms", safetyHandler.ListSafetyForms).Methods("GET")
	api.HandleFunc("/safetyForms/job/{jobNumber}", safetyHandler.ListJobSafetyForms).Methods("GET")
	api.HandleFunc("/safetyForms/{id}", safetyHandler.GetSafetyForm).Methods("GET")

	// Report endpoints
	api.HandleFunc("/reports/jobs", reportHandler.CompletedInRange).Methods("GET")
	api.HandleFunc("/reports/jobs/export", reportHandler.ExportCSV).Methods("GET")
	api.HandleFunc("/reports/jobs/date/{date}", reportHandler.CompletedOnDate).Methods("GET")
	api.HandleFunc("/reports/today", reportHandler.CreatedToday).Methods("GET")
	api.HandleFunc("/reports/summary", reportHandler.Summary).Methods("GET")

	// Upload endpoint
	if d.Uploader != nil {
		uploadHandler := handlers.NewUploadHandler(d.Uploader, d.UploadMaxBytes)
		api.HandleFunc("/upload", uploadHandler.Upload).Methods("POST")
	}

	// User endpoints
	api.HandleFunc("/users", userHandler.CreateUser).Methods("POST")
	api.HandleFunc("/users", userHandler.ListUsers).Methods("GET")
	api.HandleFunc("/users/role/{role}", userHandler.ListUsersByRole).Methods("GET")
	api.HandleFunc("/users/{id}", userHandler.GetUser).Methods("GET")
	api.HandleFunc("/users/{id}", userHandler.UpdateUser).Methods("PUT")
	api.HandleFunc("/users/{id}", userHandler.DeleteUser).Methods("DELETE")

	// Address endpoints
	api.HandleFunc("/addresses", addressHandler.CreateAddress).Methods("POST")
	api.HandleFunc("/addresses", addressHandler.ListAddresses).Methods("GET")
	api.HandleFunc("/addresses/{id}", addressHandler.GetAddress).Methods("GET")
	api.HandleFunc("/addresses/{id}", addressHandler.UpdateAddress).Methods("PUT")
	api.HandleFunc("/addresses/{id}", addressHandler.DeleteAddress).Methods("DELETE")
}
