// Package liveness computes passive capture-quality signals on a live
// selfie. The checks are a heuristic filter: they catch blurry, badly lit or
// badly framed captures and do not stop printed photos or replayed screens.
package liveness

import (
	"image"

	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facematch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facematch/internal/matching"
)

// Reason codes reported in LivenessVerdict.Reasons.
const (
	ReasonBlurry        = "blurry"
	ReasonTooDark       = "tooDark"
	ReasonTooBright     = "tooBright"
	ReasonFaceTooSmall  = "faceTooSmall"
	ReasonNoFace        = "noFace"
	ReasonMultipleFaces = "multipleFaces"
)

// Thresholds configura os limites das verificações passivas
type Thresholds struct {
	BlurFloor     float64
	BrightnessMin float64
	BrightnessMax float64
	FaceSizeFloor float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		BlurFloor:     60,
		BrightnessMin: 40,
		BrightnessMax: 220,
		FaceSizeFloor: 0.03,
	}
}

// Check evaluates img given the boxes detected on it. Blur and brightness
// are measured over the largest face (clamped to the image) or over the
// whole frame when no face was found.
func Check(img image.Image, boxes []domain.FaceBox, th Thresholds) domain.LivenessVerdict {
	bounds := img.Bounds()
	region := bounds
	metrics := domain.LivenessMetrics{FaceCount: len(boxes)}

	if largest, ok := matching.Largest(boxes); ok {
		clamped := largest.Clamp(bounds)
		if clamped.Valid() {
			region = clamped.Rect()
		}
		if area := bounds.Dx() * bounds.Dy(); area > 0 {
			metrics.FaceSizeRatio = float64(clamped.Area()) / float64(area)
		}
	}

	gray := imaging.Gray(img, region)
	metrics.Blur = imaging.LaplacianVariance(gray)
	metrics.Brightness = imaging.MeanLuma(gray)

	reasons := make([]string, 0, 4)

	switch {
	case metrics.FaceCount == 0:
		reasons = append(reasons, ReasonNoFace)
	case metrics.FaceCount > 1:
		reasons = append(reasons, ReasonMultipleFaces)
	}

	if metrics.FaceCount > 0 && metrics.FaceSizeRatio < th.FaceSizeFloor {
		reasons = append(reasons, ReasonFaceTooSmall)
	}

	if metrics.Blur < th.BlurFloor {
		reasons = append(reasons, ReasonBlurry)
	}

	switch {
	case metrics.Brightness < th.BrightnessMin:
		reasons = append(reasons, ReasonTooDark)
	case metrics.Brightness > th.BrightnessMax:
		reasons = append(reasons, ReasonTooBright)
	}

	return domain.LivenessVerdict{
		Passed:  len(reasons) == 0,
		Reasons: reasons,
		Metrics: metrics,
	}
}

// Validate rejects threshold sets that can never pass.
func (t Thresholds) Validate() error {
	if t.BlurFloor < 0 || t.FaceSizeFloor < 0 || t.FaceSizeFloor > 1 {
		return domain.ErrValidationFailed.WithMessage("liveness floors must be non-negative and face size floor at most 1")
	}
	if t.BrightnessMin < 0 || t.BrightnessMax > 255 || t.BrightnessMin > t.BrightnessMax {
		return domain.ErrValidationFailed.WithMessage("liveness brightness band must lie within [0, 255]")
	}
	return nil
}
