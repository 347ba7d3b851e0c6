package domain

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// FaceBox representa uma face detectada em coordenadas de pixel
type FaceBox struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	W     int     `json:"w"`
	H     int     `json:"h"`
	Score float64 `json:"score"`
}

func (b FaceBox) Area() int {
	return b.W * b.H
}

func (b FaceBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Valid reports whether the box has a positive extent.
func (b FaceBox) Valid() bool {
	return b.W > 0 && b.H > 0
}

// Clamp restricts the box to bounds. The result may be empty when the box
// lies entirely outside bounds.
func (b FaceBox) Clamp(bounds image.Rectangle) FaceBox {
	r := b.Rect().Intersect(bounds)
	return FaceBox{
		X:     r.Min.X,
		Y:     r.Min.Y,
		W:     r.Dx(),
		H:     r.Dy(),
		Score: b.Score,
	}
}

// Embedding is the identity vector produced by the embedder.
type Embedding []float64

// DetectionResult representa o resultado de detecção para uma imagem
type DetectionResult struct {
	FaceCount int       `json:"faceCount"`
	Boxes     []FaceBox `json:"boxes"`
}

func NewDetectionResult(boxes []FaceBox) DetectionResult {
	if boxes == nil {
		boxes = []FaceBox{}
	}
	return DetectionResult{FaceCount: len(boxes), Boxes: boxes}
}

type RoleAssignment struct {
	DocumentBox  *FaceBox `json:"documentBox"`
	CandidateBox *FaceBox `json:"candidateBox"`
}

type SimilarityVerdict struct {
	Similarity   *float64 `json:"similarity"`
	Threshold    float64  `json:"threshold"`
	IsMatch      bool     `json:"isMatch"`
	MatchPercent float64  `json:"matchPercent"`
}

type LivenessMetrics struct {
	Blur          float64 `json:"blur"`
	Brightness    float64 `json:"brightness"`
	FaceSizeRatio float64 `json:"faceSizeRatio"`
	FaceCount     int     `json:"faceCount"`
}

// LivenessVerdict is advisory. Passed=true is not a proof against
// presentation attacks such as printed photos or screens.
type LivenessVerdict struct {
	Passed  bool            `json:"passed"`
	Reasons []string        `json:"reasons"`
	Metrics LivenessMetrics `json:"metrics"`
}

type VerificationMode string

const (
	ModeTwoImages   VerificationMode = "twoImages"
	ModeSingleImage VerificationMode = "singleImage"
)

// Warnings emitted alongside a resolved role assignment.
const (
	WarningMultipleFacesInDocument = "multipleFacesInDocument"
	WarningMultipleFacesInSelfie   = "multipleFacesInSelfie"
	WarningLivenessFailed          = "livenessFailed"
	WarningDocumentBoxNotDetected  = "documentBoxNotDetected"
	WarningCandidateBoxNotDetected = "candidateBoxNotDetected"
)

type VerdictError struct {
	Code    Reason `json:"code"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// FaceCounts reports how many faces were seen per input. Single-image
// verdicts only carry FaceCount.
type FaceCounts struct {
	FaceCount         *int `json:"faceCount,omitempty"`
	DocumentFaceCount *int `json:"documentFaceCount,omitempty"`
	SelfieFaceCount   *int `json:"selfieFaceCount,omitempty"`
}

// DocumentSearch describes how the document portrait was finally found.
type DocumentSearch struct {
	Strategy       string  `json:"strategy"`
	ScoreThreshold float64 `json:"scoreThreshold"`
	Scale          int     `json:"scale"`
}

// VerificationResponse é o veredito final de uma verificação
type VerificationResponse struct {
	OK   bool             `json:"ok"`
	Mode VerificationMode `json:"mode"`
	SimilarityVerdict
	Faces          FaceCounts       `json:"faces"`
	Roles          RoleAssignment   `json:"roles"`
	DocumentSearch *DocumentSearch  `json:"documentSearch,omitempty"`
	Liveness       *LivenessVerdict `json:"liveness"`
	Warnings       []string         `json:"warnings"`
	Error          *VerdictError    `json:"error,omitempty"`
	LatencyMs      int64            `json:"latencyMs"`
}

// Decline marks the response as a declined verdict. Similarity is kept when
// already computed.
func (r *VerificationResponse) Decline(err *StageError) {
	r.OK = false
	r.IsMatch = false
	r.Error = err.VerdictError()
}

func (r *VerificationResponse) AddWarning(w string) {
	for _, existing := range r.Warnings {
		if existing == w {
			return
		}
	}
	r.Warnings = append(r.Warnings, w)
}

// VerificationRecord representa um registro de verificação (audit).
// Nunca armazena imagens nem embeddings.
type VerificationRecord struct {
	ID             uuid.UUID        `json:"id"`
	Mode           VerificationMode `json:"mode"`
	OK             bool             `json:"ok"`
	Reason         string           `json:"reason,omitempty"`
	Similarity     *float64         `json:"similarity,omitempty"`
	Threshold      float64          `json:"threshold"`
	IsMatch        bool             `json:"is_match"`
	MatchPercent   float64          `json:"match_percent"`
	LivenessPassed *bool            `json:"liveness_passed,omitempty"`
	LatencyMs      int64            `json:"latency_ms"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NewVerificationRecord summarises a response for persistence.
func NewVerificationRecord(resp *VerificationResponse) *VerificationRecord {
	rec := &VerificationRecord{
		ID:           uuid.New(),
		Mode:         resp.Mode,
		OK:           resp.OK,
		Similarity:   resp.Similarity,
		Threshold:    resp.Threshold,
		IsMatch:      resp.IsMatch,
		MatchPercent: resp.MatchPercent,
		LatencyMs:    resp.LatencyMs,
		CreatedAt:    time.Now().UTC(),
	}
	if resp.Error != nil {
		rec.Reason = string(resp.Error.Code)
	}
	if resp.Liveness != nil {
		passed := resp.Liveness.Passed
		rec.LivenessPassed = &passed
	}
	return rec
}

func IntPtr(v int) *int {
	return &v
}

func Float64Ptr(v float64) *float64 {
	return &v
}
