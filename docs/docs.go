// Package docs Member Portal API.
//
// Documentation of the member portal HTTP API. Real-time chat runs over
// Socket.IO on /socket.io/ with the "/dept" (department) and "/support" namespaces.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - cookie
//
//    SecurityDefinitions:
//    cookie:
//      type: apiKey
//      in: header
//      name: Cookie
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/member-portal/models"
	"github.com/linesmerrill/member-portal/realtime"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route POST /login auth login
// Starts a session and sets the portal.sid cookie.
// responses:
//   200: identityResponse

// swagger:route GET /me members me
// Returns the logged-in identity.
// responses:
//   200: identityResponse

// The identity stored in the session
// swagger:response identityResponse
type identityResponseWrapper struct {
	// in:body
	Body realtime.Identity
}

// swagger:route POST /join-department members joinDepartment
// Unlocks a department chat room for the session.
// responses:
//   200: joinDepartmentResponse

// Whether the department password matched
// swagger:response joinDepartmentResponse
type joinDepartmentResponseWrapper struct {
	// in:body
	Body models.JoinDepartmentResponse
}

// swagger:route GET /get-current-dept members currentDepartment
// Returns the department the session unlocked, or null.
// responses:
//   200: currentDepartmentResponse

// The unlocked department
// swagger:response currentDepartmentResponse
type currentDepartmentResponseWrapper struct {
	// in:body
	Body models.CurrentDepartmentResponse
}

// swagger:route GET /posts posts posts
// Lists posts visible to the caller, newest first.
// responses:
//   200: postsResponse

// Visible posts
// swagger:response postsResponse
type postsResponseWrapper struct {
	// in:body
	Body []models.Post
}
