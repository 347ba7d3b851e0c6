package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/facematch/internal/audit"
	"github.com/saturnino-fabrica-de-software/facematch/internal/config"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider/rekognition"
)

// ProviderType defines supported detector and embedder backends
type ProviderType string

const (
	// ProviderTypeDeepFace is a DeepFace-compatible inference server (detector and embedder)
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeRekognition is AWS Rekognition (detector only, no embeddings exposed)
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeMock is the deterministic in-process provider for dev and tests
	ProviderTypeMock ProviderType = "mock"
)

// Providers agrupa o detector e o embedder escolhidos pela configuração
type Providers struct {
	Detector     provider.Detector
	Embedder     provider.Embedder
	DetectorName string
	EmbedderName string
}

// NewProviders builds the detector and embedder selected by PROVIDER_TYPE
// and EMBEDDER_TYPE. When both point at DeepFace a single client is shared.
//
// Environment variables:
//   - PROVIDER_TYPE: "deepface", "rekognition" or "mock" (default: "deepface")
//   - EMBEDDER_TYPE: "deepface" or "mock" (default: "deepface")
//   - DEEPFACE_URL, DEEPFACE_MODEL, DEEPFACE_DETECTOR, DEEPFACE_TIMEOUT
//   - AWS_REGION plus the usual AWS SDK credential chain
func NewProviders(ctx context.Context, cfg *config.Config, auditLogger audit.Logger) (*Providers, error) {
	var df *deepface.Provider
	getDeepFace := func() *deepface.Provider {
		if df == nil {
			df = createDeepFaceProvider(cfg)
		}
		return df
	}

	out := &Providers{
		DetectorName: string(providerTypeOrDefault(cfg.ProviderType)),
		EmbedderName: string(providerTypeOrDefault(cfg.EmbedderType)),
	}

	switch ProviderType(out.DetectorName) {
	case ProviderTypeDeepFace:
		out.Detector = getDeepFace()
	case ProviderTypeRekognition:
		p, err := createRekognitionProvider(ctx, cfg, auditLogger)
		if err != nil {
			return nil, err
		}
		out.Detector = p
	case ProviderTypeMock:
		out.Detector = mock.New()
	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
			cfg.ProviderType, ProviderTypeDeepFace, ProviderTypeRekognition, ProviderTypeMock)
	}

	switch ProviderType(out.EmbedderName) {
	case ProviderTypeDeepFace:
		out.Embedder = getDeepFace()
	case ProviderTypeMock:
		out.Embedder = mock.New()
	case ProviderTypeRekognition:
		return nil, fmt.Errorf("rekognition does not expose embeddings, set EMBEDDER_TYPE to %s or %s",
			ProviderTypeDeepFace, ProviderTypeMock)
	default:
		return nil, fmt.Errorf("unknown embedder type: %s (supported: %s, %s)",
			cfg.EmbedderType, ProviderTypeDeepFace, ProviderTypeMock)
	}

	return out, nil
}

func providerTypeOrDefault(v string) ProviderType {
	if v == "" {
		return ProviderTypeDeepFace
	}
	return ProviderType(v)
}

// createRekognitionProvider creates an AWS Rekognition detector
func createRekognitionProvider(ctx context.Context, cfg *config.Config, auditLogger audit.Logger) (*rekognition.Provider, error) {
	rekogConfig := rekognition.Config{
		Region: cfg.AWSRegion,
	}
	if rekogConfig.Region == "" {
		rekogConfig.Region = rekognition.DefaultConfig().Region
	}

	var opts []rekognition.ProviderOption
	if auditLogger != nil {
		opts = append(opts, rekognition.WithAuditLogger(auditLogger))
	}

	prov, err := rekognition.NewProvider(ctx, rekogConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("create rekognition provider in %s: %w", rekogConfig.Region, err)
	}

	return prov, nil
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config) *deepface.Provider {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceDetector != "" {
		deepfaceConfig.Detector = cfg.DeepFaceDetector
	}
	if cfg.DeepFaceTimeout > 0 {
		deepfaceConfig.Timeout = cfg.DeepFaceTimeout
	}

	return deepface.NewProvider(deepfaceConfig)
}
