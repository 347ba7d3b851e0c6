package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// FaceBox is a detected face in pixel coordinates
type FaceBox struct {
	X     int     `json:"x" example:"120"`
	Y     int     `json:"y" example:"80"`
	W     int     `json:"w" example:"160"`
	H     int     `json:"h" example:"180"`
	Score float64 `json:"score" example:"0.97"`
}

// DetectResponse lists the faces above the score threshold
type DetectResponse struct {
	FaceCount int       `json:"faceCount" example:"1"`
	Boxes     []FaceBox `json:"boxes"`
}

// LivenessMetrics are the raw measurements behind the liveness verdict
type LivenessMetrics struct {
	Blur          float64 `json:"blur" example:"184.2"`
	Brightness    float64 `json:"brightness" example:"121.5"`
	FaceSizeRatio float64 `json:"faceSizeRatio" example:"0.18"`
	FaceCount     int     `json:"faceCount" example:"1"`
}

// LivenessResponse is advisory and does not prove presence of a live person
type LivenessResponse struct {
	Passed  bool            `json:"passed" example:"true"`
	Reasons []string        `json:"reasons" example:"[]"`
	Metrics LivenessMetrics `json:"metrics"`
}

// RoleAssignment tells which box was used for each role
type RoleAssignment struct {
	DocumentBox  *FaceBox `json:"documentBox"`
	CandidateBox *FaceBox `json:"candidateBox"`
}

// FaceCounts reports faces per input
type FaceCounts struct {
	FaceCount         int `json:"faceCount,omitempty" example:"2"`
	DocumentFaceCount int `json:"documentFaceCount,omitempty" example:"1"`
	SelfieFaceCount   int `json:"selfieFaceCount,omitempty" example:"1"`
}

// DocumentSearch describes the retry that found the document portrait
type DocumentSearch struct {
	Strategy       string  `json:"strategy" example:"lowerThreshold"`
	ScoreThreshold float64 `json:"scoreThreshold" example:"0.4"`
	Scale          int     `json:"scale" example:"1"`
}

// VerdictError explains why a verdict was declined
type VerdictError struct {
	Code    string `json:"code" example:"noFacesDetected"`
	Stage   string `json:"stage" example:"resolveRoles"`
	Message string `json:"message" example:"no face detected in document image"`
}

// VerificationResponse is returned with status 200 for every verdict, including declined ones
type VerificationResponse struct {
	OK             bool              `json:"ok" example:"true"`
	Mode           string            `json:"mode" example:"twoImages"`
	Similarity     *float64          `json:"similarity" example:"0.81"`
	Threshold      float64           `json:"threshold" example:"0.55"`
	IsMatch        bool              `json:"isMatch" example:"true"`
	MatchPercent   float64           `json:"matchPercent" example:"82.73"`
	Faces          FaceCounts        `json:"faces"`
	Roles          RoleAssignment    `json:"roles"`
	DocumentSearch *DocumentSearch   `json:"documentSearch,omitempty"`
	Liveness       *LivenessResponse `json:"liveness"`
	Warnings       []string          `json:"warnings" example:"[]"`
	Error          *VerdictError     `json:"error,omitempty"`
	LatencyMs      int64             `json:"latencyMs" example:"142"`
}

// OutcomeCount is one aggregated outcome
type OutcomeCount struct {
	Reason string `json:"reason" example:"match"`
	Count  int64  `json:"count" example:"42"`
}

// StatsResponse aggregates persisted verdicts
type StatsResponse struct {
	Since    string         `json:"since" example:"2026-01-01T00:00:00Z"`
	Total    int64          `json:"total" example:"57"`
	Outcomes []OutcomeCount `json:"outcomes"`
}

// HealthResponse is returned by the probes
type HealthResponse struct {
	Status   string `json:"status" example:"ready"`
	Version  string `json:"version,omitempty" example:"0.1.0"`
	Database string `json:"database,omitempty" example:"ok"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"INVALID_IMAGE"`
	Message string `json:"message" example:"Invalid image format or corrupted file"`
}

var (
	errMissingImage = response.New(ErrorResponse{Code: "MISSING_IMAGE", Message: "Image file is required"}, "400", "Bad Request")
	errInvalidImage = response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "400", "Bad Request")
	errThreshold    = response.New(ErrorResponse{Code: "INVALID_THRESHOLD", Message: "Threshold must be between 0 and 1"}, "422", "Unprocessable Entity")
	errRateLimit    = response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests")
	errInternal     = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")
	errProvider     = response.New(ErrorResponse{Code: "PROVIDER_UNAVAILABLE", Message: "Face analysis provider is unavailable"}, "503", "Service Unavailable")
)

var multipart = []mime.MIME{mime.MIME("multipart/form-data")}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "FaceMatch API",
		Version:     "v1.0.0",
		Description: "Compares the portrait on an identity document with a live selfie. Liveness results are advisory heuristics, not anti-spoofing.",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/detect
		endpoint.New(
			endpoint.POST,
			"/detect",
			endpoint.WithTags("Faces"),
			endpoint.WithSummary("Detect faces"),
			endpoint.WithDescription("Multipart field `file`. Returns every face scoring at or above score_threshold. Zero faces is a valid result."),
			endpoint.WithConsume(multipart),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("score_threshold", parameter.Query, parameter.WithDescription("Detector score threshold (0-1, default 0.5)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DetectResponse{}, "200", "Detection completed"),
			}),
			endpoint.WithErrors([]response.Response{errMissingImage, errInvalidImage, errThreshold, errRateLimit, errInternal, errProvider}),
		),

		// POST /v1/verify
		endpoint.New(
			endpoint.POST,
			"/verify",
			endpoint.WithTags("Verification"),
			endpoint.WithSummary("Verify document against selfie"),
			endpoint.WithDescription("Multipart fields `document` and `selfie`. The largest face of each image is compared. Declined verdicts (no face, degenerate crop, failed liveness with gating) are returned with 200 and ok=false."),
			endpoint.WithConsume(multipart),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("threshold", parameter.Query, parameter.WithDescription("Similarity threshold (0-1, default 0.55)")),
				parameter.StrParam("score_threshold", parameter.Query, parameter.WithDescription("Detector score threshold (0-1, default 0.5)")),
				parameter.StrParam("run_liveness", parameter.Query, parameter.WithDescription("Run liveness heuristics on the selfie (default true)")),
				parameter.StrParam("liveness_gating", parameter.Query, parameter.WithDescription("Decline the verdict when liveness fails (default false)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(VerificationResponse{}, "200", "Verdict"),
			}),
			endpoint.WithErrors([]response.Response{errMissingImage, errInvalidImage, errThreshold, errRateLimit, errInternal, errProvider}),
		),

		// POST /v1/verify_single
		endpoint.New(
			endpoint.POST,
			"/verify_single",
			endpoint.WithTags("Verification"),
			endpoint.WithSummary("Verify a selfie holding the document"),
			endpoint.WithDescription("Multipart field `file` plus optional form fields `candidate_box` and `document_box` as JSON {x,y,w,h}. Without boxes the smallest face is the document portrait and the largest is the candidate."),
			endpoint.WithConsume(multipart),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("threshold", parameter.Query, parameter.WithDescription("Similarity threshold (0-1, default 0.55)")),
				parameter.StrParam("score_threshold", parameter.Query, parameter.WithDescription("Detector score threshold (0-1, default 0.5)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(VerificationResponse{}, "200", "Verdict"),
			}),
			endpoint.WithErrors([]response.Response{
				errMissingImage,
				errInvalidImage,
				response.New(ErrorResponse{Code: "INVALID_BOX", Message: "Box must be a JSON object with positive w and h"}, "422", "Unprocessable Entity"),
				errThreshold,
				errRateLimit,
				errInternal,
				errProvider,
			}),
		),

		// POST /v1/liveness
		endpoint.New(
			endpoint.POST,
			"/liveness",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("Passive liveness heuristics"),
			endpoint.WithDescription("Multipart field `file`. Reports blur, brightness, face size and face count checks."),
			endpoint.WithConsume(multipart),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LivenessResponse{}, "200", "Liveness verdict"),
			}),
			endpoint.WithErrors([]response.Response{errMissingImage, errInvalidImage, errRateLimit, errInternal, errProvider}),
		),

		// GET /v1/stats
		endpoint.New(
			endpoint.GET,
			"/stats",
			endpoint.WithTags("Audit"),
			endpoint.WithSummary("Aggregated verdicts"),
			endpoint.WithDescription("Only available when DATABASE_URL is configured."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("window", parameter.Query, parameter.WithDescription("Look-back window as a Go duration (default 24h)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StatsResponse{}, "200", "Counts per outcome"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "window must be a positive duration such as 24h"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "Service is not ready"}, "503", "Service Unavailable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
