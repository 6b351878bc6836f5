// Package docs Smart Grievance API.
//
// Documentation of the Smart Grievance API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//     Host: https://grievance-api.herokuapp.com
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - basic
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//
// swagger:meta
package docs

import (
	"github.com/smart-grievance/grievance-api/models"
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

// swagger:route POST /api/v1/case case submitCase
// Files a new grievance or feedback case.
// responses:
//   201: caseResponse

// A single case with its full lifecycle state.
// swagger:response caseResponse
type caseResponseWrapper struct {
	// in:body
	Body models.Case
}

// swagger:route GET /api/v1/admin/cases admin listCases
// Lists every case with citizen identity masked on anonymous submissions.
// responses:
//   200: caseListResponse

// The officer and admin listing view of cases.
// swagger:response caseListResponse
type caseListResponseWrapper struct {
	// in:body
	Body []models.CaseItem
}

// swagger:route GET /api/v1/officer/{email}/rating rating officerRating
// Returns the public rating aggregate for an officer.
// responses:
//   200: officerRatingResponse

// The recomputed rating aggregate for one officer.
// swagger:response officerRatingResponse
type officerRatingResponseWrapper struct {
	// in:body
	Body models.OfficerRatingSummary
}
