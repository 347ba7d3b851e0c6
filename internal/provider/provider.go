package provider

import (
	"context"
	"errors"
	"image"

	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
)

// MinRegionSize is the smallest crop side, in pixels, an embedder accepts.
const MinRegionSize = 20

var (
	// ErrDetection indicates the detector could not process the image
	ErrDetection = errors.New("face detection failed")

	// ErrEmbedding indicates the region is too small or degenerate to embed
	ErrEmbedding = errors.New("face embedding failed")

	// ErrUnavailable indicates an infrastructure failure of the backing model
	// (service down, credentials rejected, model not loaded)
	ErrUnavailable = errors.New("face provider unavailable")
)

// Detector define a interface para detectores de faces.
// Implementations must be safe for concurrent use.
type Detector interface {
	// Detect returns every face scoring at least scoreThreshold, in
	// pixel coordinates of the decoded image. No face is not an error.
	Detect(ctx context.Context, image []byte, scoreThreshold float64) (domain.DetectionResult, error)
}

// Embedder define a interface para extratores de embeddings.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns the identity vector of an already cropped face region.
	Embed(ctx context.Context, region image.Image) (domain.Embedding, error)
}

// ValidateRegion rejects regions smaller than MinRegionSize on either side.
func ValidateRegion(region image.Image) error {
	b := region.Bounds()
	if b.Dx() < MinRegionSize || b.Dy() < MinRegionSize {
		return ErrEmbedding
	}
	return nil
}

// FilterByScore drops boxes below threshold, keeping detector order.
func FilterByScore(boxes []domain.FaceBox, threshold float64) []domain.FaceBox {
	out := make([]domain.FaceBox, 0, len(boxes))
	for _, b := range boxes {
		if b.Score >= threshold && b.Valid() {
			out = append(out, b)
		}
	}
	return out
}
