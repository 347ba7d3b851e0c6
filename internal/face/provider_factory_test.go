package face

import (
	"context"
	"strings"
	"testing"

	"github.com/saturnino-fabrica-de-software/facematch/internal/audit"
	"github.com/saturnino-fabrica-de-software/facematch/internal/config"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider/rekognition"
)

func TestNewProviders(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		providerType string
		embedderType string
		wantDetector string
		wantEmbedder string
	}{
		{
			name:         "deepface for both",
			providerType: "deepface",
			embedderType: "deepface",
			wantDetector: "*deepface.Provider",
			wantEmbedder: "*deepface.Provider",
		},
		{
			name:         "empty values default to deepface",
			wantDetector: "*deepface.Provider",
			wantEmbedder: "*deepface.Provider",
		},
		{
			name:         "mock for both",
			providerType: "mock",
			embedderType: "mock",
			wantDetector: "*mock.Provider",
			wantEmbedder: "*mock.Provider",
		},
		{
			name:         "mock detector with deepface embedder",
			providerType: "mock",
			embedderType: "deepface",
			wantDetector: "*mock.Provider",
			wantEmbedder: "*deepface.Provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				ProviderType: tt.providerType,
				EmbedderType: tt.embedderType,
				DeepFaceURL:  "http://localhost:5005",
			}

			p, err := NewProviders(ctx, cfg, &audit.NoOpLogger{})
			if err != nil {
				t.Fatalf("NewProviders() error = %v", err)
			}

			if got := typeName(p.Detector); got != tt.wantDetector {
				t.Errorf("detector type = %s, want %s", got, tt.wantDetector)
			}
			if got := typeName(p.Embedder); got != tt.wantEmbedder {
				t.Errorf("embedder type = %s, want %s", got, tt.wantEmbedder)
			}
		})
	}
}

func TestNewProviders_SharesDeepFaceClient(t *testing.T) {
	p, err := NewProviders(context.Background(), &config.Config{ProviderType: "deepface", EmbedderType: "deepface"}, nil)
	if err != nil {
		t.Fatalf("NewProviders() error = %v", err)
	}

	det, _ := p.Detector.(*deepface.Provider)
	emb, _ := p.Embedder.(*deepface.Provider)
	if det == nil || det != emb {
		t.Errorf("expected one shared deepface provider, got %p and %p", det, emb)
	}
}

func TestNewProviders_Rekognition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Rekognition test in short mode (loads AWS config)")
	}

	cfg := &config.Config{
		ProviderType: "rekognition",
		EmbedderType: "mock",
		AWSRegion:    "us-east-1",
	}

	p, err := NewProviders(context.Background(), cfg, &audit.NoOpLogger{})
	if err != nil {
		t.Skipf("Skipping Rekognition test (AWS config unavailable): %v", err)
	}

	if _, ok := p.Detector.(*rekognition.Provider); !ok {
		t.Errorf("detector type = %T, want *rekognition.Provider", p.Detector)
	}
	if _, ok := p.Embedder.(*mock.Provider); !ok {
		t.Errorf("embedder type = %T, want *mock.Provider", p.Embedder)
	}
}

func TestNewProviders_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		wantMsg string
	}{
		{
			name:    "unknown detector",
			cfg:     &config.Config{ProviderType: "unknown-provider", EmbedderType: "mock"},
			wantMsg: "unknown provider type: unknown-provider",
		},
		{
			name:    "unknown embedder",
			cfg:     &config.Config{ProviderType: "mock", EmbedderType: "facenet-local"},
			wantMsg: "unknown embedder type: facenet-local",
		},
		{
			name:    "rekognition cannot embed",
			cfg:     &config.Config{ProviderType: "mock", EmbedderType: "rekognition"},
			wantMsg: "rekognition does not expose embeddings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProviders(context.Background(), tt.cfg, nil)
			if err == nil {
				t.Fatal("NewProviders() expected error, got nil")
			}
			if !strings.HasPrefix(err.Error(), tt.wantMsg) {
				t.Errorf("NewProviders() error = %v, want prefix %q", err, tt.wantMsg)
			}
		})
	}
}

func TestProviderType_Constants(t *testing.T) {
	if ProviderTypeDeepFace != "deepface" {
		t.Errorf("ProviderTypeDeepFace = %q, want %q", ProviderTypeDeepFace, "deepface")
	}

	if ProviderTypeRekognition != "rekognition" {
		t.Errorf("ProviderTypeRekognition = %q, want %q", ProviderTypeRekognition, "rekognition")
	}

	if ProviderTypeMock != "mock" {
		t.Errorf("ProviderTypeMock = %q, want %q", ProviderTypeMock, "mock")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *deepface.Provider:
		return "*deepface.Provider"
	case *mock.Provider:
		return "*mock.Provider"
	case *rekognition.Provider:
		return "*rekognition.Provider"
	default:
		return "unknown"
	}
}
