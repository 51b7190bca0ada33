package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/member-portal/api"
	"github.com/linesmerrill/member-portal/config"
	"github.com/linesmerrill/member-portal/databases"
	"github.com/linesmerrill/member-portal/models"
	"github.com/linesmerrill/member-portal/realtime"
)

// Auth handles account creation and login
type Auth struct {
	DB       databases.UserDatabase
	Sessions *api.SessionStore
}

// SignupHandler creates a regular user account
func (a Auth) SignupHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req models.SignupRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || req.Password == "" {
		config.ErrorStatus("ID and password are required", http.StatusBadRequest, w, fmt.Errorf("missing credentials"))
		return
	}
	// support rooms are named after member ids, guests and staff included
	if realtime.ReservedID(req.ID) {
		config.ErrorStatus("ID is reserved", http.StatusConflict, w, fmt.Errorf("reserved id"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	existing, err := a.DB.FindOne(ctx, bson.M{"_id": req.ID})
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("failed to look up user", http.StatusInternalServerError, w, err)
		return
	}
	if existing != nil {
		config.ErrorStatus("ID already exists", http.StatusConflict, w, fmt.Errorf("duplicate id"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	user := models.User{
		ID:        req.ID,
		Password:  string(hashedPassword),
		Email:     req.Email,
		Role:      string(realtime.RoleUser),
		Team:      "",
		CreatedAt: time.Now().UTC(),
	}
	err = a.DB.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("ID already exists", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to insert user", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("user signed up", "id", user.ID)
	api.WriteJSON(w, http.StatusCreated, user)
}

// LoginHandler checks credentials and starts a session
func (a Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req models.LoginRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.DB.FindOne(ctx, bson.M{"_id": req.ID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("invalid credentials", http.StatusUnauthorized, w, fmt.Errorf("unknown id"))
			return
		}
		config.ErrorStatus("failed to look up user", http.StatusInternalServerError, w, err)
		return
	}
	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password))
	if err != nil {
		config.ErrorStatus("invalid credentials", http.StatusUnauthorized, w, fmt.Errorf("password mismatch"))
		return
	}

	identity := realtime.Identity{ID: user.ID, Role: realtime.Role(user.Role), Team: user.Team}
	sid, err := a.Sessions.Create(identity)
	if err != nil {
		config.ErrorStatus("failed to create session", http.StatusInternalServerError, w, err)
		return
	}
	http.SetCookie(w, a.Sessions.Cookie(sid))

	zap.S().Infow("user logged in", "id", user.ID, "role", user.Role)
	api.WriteJSON(w, http.StatusOK, identity)
}

// LogoutHandler ends the caller's session
func (a Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	a.Sessions.Destroy(api.SessionRef(r))
	http.SetCookie(w, api.ExpiredCookie())
	w.WriteHeader(http.StatusNoContent)
}

// FindIDHandler looks up the account id registered to an email
func (a Auth) FindIDHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req models.FindIDRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.Email == "" {
		config.ErrorStatus("email is required", http.StatusBadRequest, w, fmt.Errorf("missing email"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.DB.FindOne(ctx, bson.M{"email": req.Email})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("no account for email", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to look up user", http.StatusInternalServerError, w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, models.FindIDResponse{ID: user.ID})
}
