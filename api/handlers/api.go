package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/smart-grievance/grievance-api/api"
	"github.com/smart-grievance/grievance-api/api/scheduler"
	"github.com/smart-grievance/grievance-api/config"
	"github.com/smart-grievance/grievance-api/databases"
	"github.com/smart-grievance/grievance-api/lifecycle"
	"github.com/smart-grievance/grievance-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Engine    *lifecycle.Engine
	Events    *lifecycle.Broadcaster
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper), JWTSecret: a.Config.JWTSecret}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	if a.Events == nil {
		a.Events = lifecycle.NewBroadcaster()
	}
	a.Engine = lifecycle.NewEngine(
		databases.NewCaseDatabase(a.dbHelper),
		databases.NewUserDatabase(a.dbHelper),
		a.Events,
	)

	authH := Auth{DB: databases.NewUserDatabase(a.dbHelper), JWTSecret: a.Config.JWTSecret}
	caseH := CaseHandler{Engine: a.Engine}
	officerH := Officer{Engine: a.Engine, UDB: databases.NewUserDatabase(a.dbHelper)}
	adminH := Admin{Engine: a.Engine, UDB: databases.NewUserDatabase(a.dbHelper)}
	uploadH := Upload{}
	eventsH := Events{Broadcaster: a.Events}

	citizen := func(h http.HandlerFunc) http.Handler {
		return api.Middleware(api.RequireRole(h, models.RoleCitizen))
	}
	officer := func(h http.HandlerFunc) http.Handler {
		return api.Middleware(api.RequireRole(h, models.RoleOfficer))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return api.Middleware(api.RequireRole(h, models.RoleAdmin))
	}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// the event stream stays open indefinitely, so it is registered ahead of
	// the timeout-wrapped subrouter
	r.Handle("/api/v1/events", admin(eventsH.StreamHandler)).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/register", http.HandlerFunc(authH.RegisterHandler)).Methods("POST")
	apiCreate.Handle("/auth/login", http.HandlerFunc(authH.LoginHandler)).Methods("POST")
	apiCreate.Handle("/profile", api.Middleware(http.HandlerFunc(authH.ProfileHandler))).Methods("GET")
	apiCreate.Handle("/profile", api.Middleware(http.HandlerFunc(authH.UpdateProfileHandler))).Methods("PUT")

	apiCreate.Handle("/case", citizen(caseH.SubmitHandler)).Methods("POST")
	apiCreate.Handle("/cases/mine", citizen(caseH.MyCasesHandler)).Methods("GET")
	apiCreate.Handle("/case/{case_id}/escalate", citizen(caseH.EscalateHandler)).Methods("POST")
	apiCreate.Handle("/case/{case_id}/withdraw", citizen(caseH.WithdrawHandler)).Methods("POST")
	apiCreate.Handle("/case/{case_id}/rating", citizen(caseH.RateHandler)).Methods("POST")
	apiCreate.Handle("/case/{case_id}", api.Middleware(api.RequireRole(http.HandlerFunc(adminH.DeleteCaseHandler), models.RoleAdmin, models.RoleOfficer))).Methods("DELETE")
	apiCreate.Handle("/case/{case_id}/status", api.Middleware(api.RequireRole(http.HandlerFunc(officerH.UpdateStatusHandler), models.RoleOfficer, models.RoleAdmin))).Methods("PUT")

	apiCreate.Handle("/cases/assigned", officer(officerH.AssignedCasesHandler)).Methods("GET")
	apiCreate.Handle("/cases/assigned/counts", officer(officerH.CountsHandler)).Methods("GET")
	apiCreate.Handle("/cases/assigned/statistics", officer(officerH.StatisticsHandler)).Methods("GET")

	// rating aggregates are public
	apiCreate.Handle("/officer/{email}/rating", http.HandlerFunc(caseH.OfficerRatingHandler)).Methods("GET")

	apiCreate.Handle("/admin/cases", admin(adminH.CasesHandler)).Methods("GET")
	apiCreate.Handle("/admin/cases/counts", admin(adminH.CountsHandler)).Methods("GET")
	apiCreate.Handle("/admin/cases/statistics", admin(adminH.StatisticsHandler)).Methods("GET")
	apiCreate.Handle("/admin/case/{case_id}/assign", admin(adminH.AssignHandler)).Methods("PUT")
	apiCreate.Handle("/admin/case/{case_id}/deadline", admin(adminH.SetDeadlineHandler)).Methods("PUT")
	apiCreate.Handle("/admin/case/{case_id}/message", admin(adminH.SendMessageHandler)).Methods("PUT")
	apiCreate.Handle("/admin/users", admin(adminH.ListUsersHandler)).Methods("GET")
	apiCreate.Handle("/admin/users", admin(adminH.CreateUserHandler)).Methods("POST")
	apiCreate.Handle("/admin/users/{user_id}", admin(adminH.UpdateUserHandler)).Methods("PUT")
	apiCreate.Handle("/admin/users/{user_id}", admin(adminH.DeleteUserHandler)).Methods("DELETE")
	apiCreate.Handle("/admin/officers", admin(adminH.ListOfficersHandler)).Methods("GET")

	apiCreate.Handle("/files/upload", citizen(uploadH.UploadPhotoHandler)).Methods("POST")
	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(uploadH.GenerateSignature))).Methods("POST")

	// swagger docs hosted at "/"
	r.PathPrefix("/").Handler(http.StripPrefix("/", http.FileServer(http.Dir("./docs/"))))
	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("grievance-api has connected to the database")

	if err := a.seedAdmin(); err != nil {
		zap.S().With(err).Error("failed to seed admin account")
		return err
	}

	// initialize api router
	a.initializeRoutes()

	// start the deadline escalation sweep
	a.Scheduler = scheduler.NewScheduler(a.Engine, databases.NewSchedulerLockDatabase(a.dbHelper), a.Config.SweepSpec)
	a.Scheduler.Start()
	return nil

}

// seedAdmin makes sure the configured ADMIN account exists so the service is
// usable on first boot
func (a *App) seedAdmin() error {
	if a.Config.AdminPassword == "" {
		zap.S().Warn("ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()

	udb := databases.NewUserDatabase(a.dbHelper)
	email := strings.ToLower(a.Config.AdminEmail)
	_, err := udb.FindOne(ctx, bson.M{"email": email})
	if err == nil {
		return nil
	}
	if err != mongo.ErrNoDocuments {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(a.Config.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = udb.InsertOne(ctx, &models.User{
		ID:        primitive.NewObjectID(),
		Name:      "Administrator",
		Email:     email,
		Password:  string(hashed),
		Role:      models.RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}
	zap.S().Infow("seeded admin account", "email", email)
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
