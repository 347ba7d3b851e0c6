package rekognition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/facematch/internal/audit"
	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facematch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100
)

// Provider implements provider.Detector using AWS Rekognition DetectFaces.
// Rekognition does not expose embeddings, so it cannot act as Embedder.
type Provider struct {
	client      *Client
	auditLogger audit.Logger
}

// ProviderOption defines optional configuration for Provider
type ProviderOption func(*Provider)

// WithAuditLogger sets the audit logger for the provider
func WithAuditLogger(logger audit.Logger) ProviderOption {
	return func(p *Provider) {
		p.auditLogger = logger
	}
}

// Ensure Provider implements provider.Detector interface at compile time
var _ provider.Detector = (*Provider)(nil)

// NewProvider creates a new Rekognition detector using the default AWS
// credential chain
func NewProvider(ctx context.Context, cfg Config, opts ...ProviderOption) (*Provider, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}

	return NewProviderWithClient(client, opts...), nil
}

// NewProviderWithClient builds a Provider around an existing client
func NewProviderWithClient(client *Client, opts ...ProviderOption) *Provider {
	p := &Provider{client: client}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// logAudit logs an audit event if an audit logger is configured
// Audit failure does not affect the operation (fire-and-forget)
func (p *Provider) logAudit(ctx context.Context, success bool, err error, metadata map[string]string) {
	if p.auditLogger == nil {
		return
	}

	event := audit.Event{
		RequestID: audit.RequestID(ctx),
		EventType: audit.EventFacesDetected,
		Provider:  "rekognition",
		Success:   success,
		Metadata:  metadata,
	}

	if err != nil {
		event.Error = err.Error()
	}

	_ = p.auditLogger.Log(ctx, event)
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// Detect detects faces using AWS Rekognition DetectFaces API and converts
// the relative bounding boxes to pixels of the decoded image
func (p *Provider) Detect(ctx context.Context, image []byte, scoreThreshold float64) (domain.DetectionResult, error) {
	meta := map[string]string{"image_size": strconv.Itoa(len(image))}

	if err := validateImage(image); err != nil {
		p.logAudit(ctx, false, err, meta)
		return domain.DetectionResult{}, fmt.Errorf("%w: %w", provider.ErrDetection, err)
	}

	width, height, err := imaging.DecodeSize(image)
	if err != nil {
		p.logAudit(ctx, false, err, meta)
		return domain.DetectionResult{}, fmt.Errorf("%w: %w", provider.ErrDetection, err)
	}

	details, err := p.client.DetectFaces(ctx, image)
	if err != nil {
		p.logAudit(ctx, false, err, meta)
		if errors.Is(err, ErrInvalidImage) {
			return domain.DetectionResult{}, fmt.Errorf("%w: %w", provider.ErrDetection, err)
		}
		if ctx.Err() != nil {
			return domain.DetectionResult{}, ctx.Err()
		}
		return domain.DetectionResult{}, fmt.Errorf("%w: %w", provider.ErrUnavailable, err)
	}

	boxes := make([]domain.FaceBox, 0, len(details))
	for _, detail := range details {
		if box, ok := toFaceBox(detail, width, height); ok {
			boxes = append(boxes, box)
		}
	}
	boxes = provider.FilterByScore(boxes, scoreThreshold)

	meta["faces_count"] = strconv.Itoa(len(boxes))
	p.logAudit(ctx, true, nil, meta)

	return domain.NewDetectionResult(boxes), nil
}

// toFaceBox converts a ratio-based bounding box to pixel coordinates.
// Confidence comes in percent and is rescaled to [0,1].
func toFaceBox(detail types.FaceDetail, width, height int) (domain.FaceBox, bool) {
	bb := detail.BoundingBox
	if bb == nil || bb.Left == nil || bb.Top == nil || bb.Width == nil || bb.Height == nil {
		return domain.FaceBox{}, false
	}

	score := 0.0
	if detail.Confidence != nil {
		score = float64(*detail.Confidence) / 100
	}

	box := domain.FaceBox{
		X:     int(math.Round(float64(*bb.Left) * float64(width))),
		Y:     int(math.Round(float64(*bb.Top) * float64(height))),
		W:     int(math.Round(float64(*bb.Width) * float64(width))),
		H:     int(math.Round(float64(*bb.Height) * float64(height))),
		Score: score,
	}

	return box, box.Valid()
}
