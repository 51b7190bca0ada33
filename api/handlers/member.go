package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/linesmerrill/member-portal/api"
	"github.com/linesmerrill/member-portal/config"
	"github.com/linesmerrill/member-portal/databases"
	"github.com/linesmerrill/member-portal/models"
)

// Member serves the member directory and department entry
type Member struct {
	DB          databases.UserDatabase
	Sessions    *api.SessionStore
	Departments *config.Departments
}

// MeHandler returns the logged-in identity
func (m Member) MeHandler(w http.ResponseWriter, r *http.Request) {
	rs, ok := api.SessionFromContext(r.Context())
	if !ok {
		config.ErrorStatus("no session", http.StatusUnauthorized, w, fmt.Errorf("missing session"))
		return
	}
	api.WriteJSON(w, http.StatusOK, rs.Identity)
}

// MembersHandler lists every member
func (m Member) MembersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	users, err := m.DB.Find(ctx, bson.M{})
	if err != nil {
		config.ErrorStatus("failed to get members", http.StatusInternalServerError, w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	api.WriteJSON(w, http.StatusOK, users)
}

// JoinDepartmentHandler unlocks a department chat room for this session
func (m Member) JoinDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	rs, ok := api.SessionFromContext(r.Context())
	if !ok {
		api.WriteJSON(w, http.StatusUnauthorized, models.JoinDepartmentResponse{Error: "unauthorized"})
		return
	}
	var req models.JoinDepartmentRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	if !m.Departments.Verify(req.Name, req.Password) {
		zap.S().Infow("department entry refused",
			"id", rs.Identity.ID,
			"department", req.Name)
		api.WriteJSON(w, http.StatusOK, models.JoinDepartmentResponse{Success: false})
		return
	}
	if !m.Sessions.SetDepartment(rs.Ref, req.Name) {
		api.WriteJSON(w, http.StatusUnauthorized, models.JoinDepartmentResponse{Error: "session expired"})
		return
	}

	zap.S().Infow("department unlocked",
		"id", rs.Identity.ID,
		"department", req.Name)
	api.WriteJSON(w, http.StatusOK, models.JoinDepartmentResponse{Success: true})
}

// ChatHandler lists members of the department the session unlocked, or of
// the caller's own team when none is unlocked
func (m Member) ChatHandler(w http.ResponseWriter, r *http.Request) {
	rs, ok := api.SessionFromContext(r.Context())
	if !ok {
		config.ErrorStatus("no session", http.StatusUnauthorized, w, fmt.Errorf("missing session"))
		return
	}
	dept := rs.CurrentDepartment
	if dept == "" {
		dept = rs.Identity.Team
	}
	if dept == "" {
		api.WriteJSON(w, http.StatusOK, []models.User{})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	users, err := m.DB.Find(ctx, bson.M{"team": dept})
	if err != nil {
		config.ErrorStatus("failed to get department members", http.StatusInternalServerError, w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	api.WriteJSON(w, http.StatusOK, users)
}

// CurrentDepartmentHandler reports the department the session unlocked
func (m Member) CurrentDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	rs, ok := api.SessionFromContext(r.Context())
	if !ok {
		config.ErrorStatus("no session", http.StatusUnauthorized, w, fmt.Errorf("missing session"))
		return
	}
	resp := models.CurrentDepartmentResponse{}
	if rs.CurrentDepartment != "" {
		dept := rs.CurrentDepartment
		resp.Dept = &dept
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
