package mock

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facematch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider"
)

// gridSize is the side of the luma grid used as embedding (gridSize² dims)
const gridSize = 16

// Provider implementa provider.Detector e provider.Embedder para testes e desenvolvimento
type Provider struct{}

// New cria uma nova instância do MockProvider
func New() *Provider {
	return &Provider{}
}

// Detect simula detecção: uma face centralizada ocupando metade da imagem
func (p *Provider) Detect(ctx context.Context, image []byte, scoreThreshold float64) (domain.DetectionResult, error) {
	w, h, err := imaging.DecodeSize(image)
	if err != nil {
		return domain.DetectionResult{}, fmt.Errorf("%w: %w", provider.ErrDetection, err)
	}

	box := domain.FaceBox{
		X:     w / 4,
		Y:     h / 4,
		W:     w / 2,
		H:     h / 2,
		Score: 0.99,
	}

	return domain.NewDetectionResult(provider.FilterByScore([]domain.FaceBox{box}, scoreThreshold)), nil
}

// Embed gera embedding determinístico a partir dos pixels da região.
// Regiões idênticas produzem o mesmo vetor; regiões uniformes produzem vetor zero.
func (p *Provider) Embed(ctx context.Context, region image.Image) (domain.Embedding, error) {
	if err := provider.ValidateRegion(region); err != nil {
		return nil, err
	}

	small := imaging.Resize(region, gridSize, gridSize)
	gray := imaging.Gray(small, image.Rect(0, 0, gridSize, gridSize))

	embedding := make(domain.Embedding, 0, gridSize*gridSize)
	for _, v := range gray.Pix {
		embedding = append(embedding, float64(v)/255.0)
	}

	// centraliza para que a similaridade coseno seja informativa
	var mean float64
	for _, v := range embedding {
		mean += v
	}
	mean /= float64(len(embedding))

	var norm float64
	for i := range embedding {
		embedding[i] -= mean
		norm += embedding[i] * embedding[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding, nil
	}

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding, nil
}

var (
	_ provider.Detector = (*Provider)(nil)
	_ provider.Embedder = (*Provider)(nil)
)
