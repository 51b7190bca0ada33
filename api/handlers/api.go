package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/member-portal/api"
	"github.com/linesmerrill/member-portal/config"
	"github.com/linesmerrill/member-portal/databases"
	"github.com/linesmerrill/member-portal/models"
	"github.com/linesmerrill/member-portal/realtime"
)

const (
	requestTimeout = 30 * time.Second
	staticDir      = "./public"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router       *mux.Router
	Config       config.Config
	Sessions     *api.SessionStore
	Metrics      *api.MetricsCollector
	Hub          *realtime.Hub
	SocketServer *socketio.Server
	dbHelper     databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.Metrics.Middleware)

	auth := Auth{DB: databases.NewUserDatabase(a.dbHelper), Sessions: a.Sessions}
	m := Member{DB: databases.NewUserDatabase(a.dbHelper), Sessions: a.Sessions, Departments: a.Config.Departments}
	p := Post{DB: databases.NewPostDatabase(a.dbHelper)}
	mh := MetricsHandler{Metrics: a.Metrics}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	timeout := api.TimeoutMiddleware(requestTimeout)
	session := a.Sessions.SessionMiddleware

	r.Handle("/signup", timeout(http.HandlerFunc(auth.SignupHandler))).Methods("POST")
	r.Handle("/login", timeout(http.HandlerFunc(auth.LoginHandler))).Methods("POST")
	r.Handle("/logout", http.HandlerFunc(auth.LogoutHandler)).Methods("POST")
	r.Handle("/find_id", timeout(http.HandlerFunc(auth.FindIDHandler))).Methods("POST")

	r.Handle("/post", timeout(session(http.HandlerFunc(p.CreatePostHandler)))).Methods("POST")
	r.Handle("/posts", timeout(session(http.HandlerFunc(p.PostsHandler)))).Methods("GET")

	r.Handle("/me", session(http.HandlerFunc(m.MeHandler))).Methods("GET")
	r.Handle("/members", timeout(session(http.HandlerFunc(m.MembersHandler)))).Methods("GET")
	r.Handle("/join-department", session(http.HandlerFunc(m.JoinDepartmentHandler))).Methods("POST")
	r.Handle("/chat", timeout(session(http.HandlerFunc(m.ChatHandler)))).Methods("GET")
	r.Handle("/get-current-dept", session(http.HandlerFunc(m.CurrentDepartmentHandler))).Methods("GET")

	r.HandleFunc("/api/v1/metrics", mh.GetMetrics).Methods("GET")

	if a.SocketServer != nil {
		r.PathPrefix("/socket.io/").Handler(a.SocketServer)
	}

	r.Handle("/", http.HandlerFunc(mainPageHandler)).Methods("GET")
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))

	return r
}

// Initialize is invoked by main to connect with the database, start the
// real-time hub and create a router
func (a *App) Initialize(ctx context.Context) error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect(ctx)
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("member-portal has connected to the database")

	err = databases.EnsureIndexes(ctx, a.dbHelper)
	if err != nil {
		zap.S().With(err).Warn("failed to ensure indexes")
	}

	a.initializeRealtime(ctx)

	go func() {
		if err := a.SocketServer.Serve(); err != nil {
			zap.S().Fatalw("socket.io server error", "error", err)
		}
	}()

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) initializeRealtime(ctx context.Context) {
	a.Sessions = api.NewSessionStore(ctx, a.Config.SessionTTL)
	a.Metrics = api.NewMetricsCollector(1000)
	a.Hub = realtime.NewHub(a.Sessions, realtime.WithObserver(a.Metrics))
	a.SocketServer = NewSocketServer(a.Hub)
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

func mainPageHandler(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, staticDir+"/main.html")
}
