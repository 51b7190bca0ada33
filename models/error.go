package models

// ErrorResponse is returned by session-protected routes when the caller is rejected
type ErrorResponse struct {
	Error string `json:"error"`
}

// JoinDepartmentResponse is the body of POST /join-department
type JoinDepartmentResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CurrentDepartmentResponse is the body of GET /get-current-dept
type CurrentDepartmentResponse struct {
	Dept *string `json:"dept"`
}
