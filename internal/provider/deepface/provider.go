package deepface

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facematch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider"
)

// skipDetector tells deepface the input is already a face crop
const skipDetector = "skip"

// Provider implements provider.Detector and provider.Embedder using DeepFace API
type Provider struct {
	client *Client
	config Config
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
		config: config,
	}
}

// Detect runs the configured detector backend through /represent and
// returns the facial areas it found.
func (p *Provider) Detect(ctx context.Context, image []byte, scoreThreshold float64) (domain.DetectionResult, error) {
	width, height, err := imaging.DecodeSize(image)
	if err != nil {
		return domain.DetectionResult{}, fmt.Errorf("%w: %w", provider.ErrDetection, err)
	}

	resp, err := p.client.Represent(ctx, RepresentRequest{
		Img:              DataURI(image),
		DetectorBackend:  p.config.Detector,
		EnforceDetection: false,
		Align:            true,
	})
	if err != nil {
		return domain.DetectionResult{}, classify(err, provider.ErrDetection)
	}

	boxes := make([]domain.FaceBox, 0, len(resp.Results))
	for _, result := range resp.Results {
		area := result.FacialArea
		// with enforce_detection=false deepface echoes the whole frame when nothing was found
		if result.FaceConfidence == 0 && area.X == 0 && area.Y == 0 && area.W >= width && area.H >= height {
			continue
		}
		boxes = append(boxes, domain.FaceBox{
			X:     area.X,
			Y:     area.Y,
			W:     area.W,
			H:     area.H,
			Score: result.FaceConfidence,
		})
	}

	return domain.NewDetectionResult(provider.FilterByScore(boxes, scoreThreshold)), nil
}

// Embed sends the crop with detection disabled and returns the unit-length
// embedding of the first result.
func (p *Provider) Embed(ctx context.Context, region image.Image) (domain.Embedding, error) {
	if err := provider.ValidateRegion(region); err != nil {
		b := region.Bounds()
		return nil, fmt.Errorf("region %dx%d: %w", b.Dx(), b.Dy(), err)
	}

	data, err := imaging.EncodePNG(region)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrEmbedding, err)
	}

	resp, err := p.client.Represent(ctx, RepresentRequest{
		Img:              DataURI(data),
		DetectorBackend:  skipDetector,
		EnforceDetection: false,
		Align:            false,
	})
	if err != nil {
		return nil, classify(err, provider.ErrEmbedding)
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: %w", provider.ErrEmbedding, ErrNoFaceInResponse)
	}

	return NormalizeEmbedding(resp.Results[0].Embedding), nil
}

// classify maps client errors to the per-request error kind and every
// other failure to provider.ErrUnavailable.
func classify(err error, kind error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isClientError(err) {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return fmt.Errorf("%w: %w", provider.ErrUnavailable, err)
}

// NormalizeEmbedding normalizes an embedding vector to unit length.
// Zero vectors are returned unchanged so callers can reject them.
func NormalizeEmbedding(embedding []float64) domain.Embedding {
	var norm float64
	for _, v := range embedding {
		norm += v * v
	}

	if norm == 0 {
		return embedding
	}

	norm = math.Sqrt(norm)
	normalized := make(domain.Embedding, len(embedding))
	for i, v := range embedding {
		normalized[i] = v / norm
	}

	return normalized
}

var (
	_ provider.Detector = (*Provider)(nil)
	_ provider.Embedder = (*Provider)(nil)
)
