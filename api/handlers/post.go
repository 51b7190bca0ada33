package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/member-portal/api"
	"github.com/linesmerrill/member-portal/config"
	"github.com/linesmerrill/member-portal/databases"
	"github.com/linesmerrill/member-portal/models"
	"github.com/linesmerrill/member-portal/realtime"
)

// Post serves the member board
type Post struct {
	DB databases.PostDatabase
}

// CreatePostHandler adds a post authored by the caller
func (p Post) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	rs, ok := api.SessionFromContext(r.Context())
	if !ok {
		config.ErrorStatus("no session", http.StatusUnauthorized, w, fmt.Errorf("missing session"))
		return
	}
	var req models.CreatePostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		config.ErrorStatus("title is required", http.StatusBadRequest, w, fmt.Errorf("missing title"))
		return
	}

	post := models.Post{
		Author:    rs.Identity.ID,
		Title:     req.Title,
		Content:   req.Content,
		Private:   req.Private,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	id, err := p.DB.InsertOne(ctx, post)
	if err != nil {
		config.ErrorStatus("failed to insert post", http.StatusInternalServerError, w, err)
		return
	}
	if oid, ok := id.(primitive.ObjectID); ok {
		post.ID = oid
	}
	api.WriteJSON(w, http.StatusCreated, post)
}

// PostsHandler lists the posts the caller may read, newest first. Accepts
// optional limit and page query params.
func (p Post) PostsHandler(w http.ResponseWriter, r *http.Request) {
	rs, ok := api.SessionFromContext(r.Context())
	if !ok {
		config.ErrorStatus("no session", http.StatusUnauthorized, w, fmt.Errorf("missing session"))
		return
	}
	limit := queryInt(r, "limit")
	page := queryInt(r, "page")

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	filter := databases.VisiblePostsFilter(rs.Identity.ID, rs.Identity.Role == realtime.RoleAdmin)
	posts, err := p.DB.Find(ctx, filter, databases.NewestFirst(limit, page))
	if err != nil {
		config.ErrorStatus("failed to get posts", http.StatusInternalServerError, w, err)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	api.WriteJSON(w, http.StatusOK, posts)
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
