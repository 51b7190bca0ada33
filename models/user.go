package models

import "time"

// User holds the structure for the users collection in mongo
type User struct {
	ID        string    `json:"ID" bson:"_id"`
	Password  string    `json:"-" bson:"password"`
	Email     string    `json:"email" bson:"email"`
	Role      string    `json:"role" bson:"role"`
	Team      string    `json:"team" bson:"team"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// SignupRequest is the body of POST /signup
type SignupRequest struct {
	ID       string `json:"ID"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	ID       string `json:"ID"`
	Password string `json:"password"`
}

// FindIDRequest is the body of POST /find_id
type FindIDRequest struct {
	Email string `json:"email"`
}

// JoinDepartmentRequest is the body of POST /join-department
type JoinDepartmentRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// FindIDResponse is the body returned by POST /find_id
type FindIDResponse struct {
	ID string `json:"ID"`
}
