package service

import (
	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facematch/internal/liveness"
	"github.com/saturnino-fabrica-de-software/facematch/internal/matching"
)

// Options carries per-call overrides. Nil fields fall back to the
// Verifier defaults.
type Options struct {
	ScoreThreshold      *float64
	SimilarityThreshold *float64
	MinFaceRegionPixels *int
	Liveness            *liveness.Thresholds

	// RunLiveness defaults to true in two-image mode.
	RunLiveness    *bool
	LivenessGating *bool

	// DocumentSearch enables the lower-threshold and upscale retries on
	// the document image. Defaults to true.
	DocumentSearch *bool

	// Manual boxes for single-image mode.
	DocumentBox  *domain.FaceBox
	CandidateBox *domain.FaceBox
}

type settings struct {
	scoreThreshold      float64
	similarityThreshold float64
	margin              float64
	minRegion           int
	liveness            liveness.Thresholds
	runLiveness         bool
	gating              bool
	documentSearch      bool
}

func (v *Verifier) settings(opts Options) (settings, error) {
	d := v.defaults
	s := settings{
		scoreThreshold:      d.DetectorScoreThreshold,
		similarityThreshold: d.SimilarityThreshold,
		margin:              d.MatchPercentMargin,
		minRegion:           d.MinFaceRegionPixels,
		liveness: liveness.Thresholds{
			BlurFloor:     d.LivenessBlurFloor,
			BrightnessMin: d.LivenessBrightnessMin,
			BrightnessMax: d.LivenessBrightnessMax,
			FaceSizeFloor: d.LivenessFaceSizeFloor,
		},
		runLiveness:    true,
		gating:         d.LivenessGating,
		documentSearch: true,
	}

	if opts.ScoreThreshold != nil {
		s.scoreThreshold = *opts.ScoreThreshold
	}
	if opts.SimilarityThreshold != nil {
		s.similarityThreshold = *opts.SimilarityThreshold
	}
	if opts.MinFaceRegionPixels != nil {
		s.minRegion = *opts.MinFaceRegionPixels
	}
	if opts.Liveness != nil {
		s.liveness = *opts.Liveness
	}
	if opts.RunLiveness != nil {
		s.runLiveness = *opts.RunLiveness
	}
	if opts.LivenessGating != nil {
		s.gating = *opts.LivenessGating
	}
	if opts.DocumentSearch != nil {
		s.documentSearch = *opts.DocumentSearch
	}

	if err := matching.ValidateThreshold(s.scoreThreshold); err != nil {
		return s, domain.ErrInvalidThreshold.WithMessage("score threshold must be between 0 and 1")
	}
	if err := matching.ValidateThreshold(s.similarityThreshold); err != nil {
		return s, err
	}
	if s.minRegion < 1 {
		return s, domain.ErrValidationFailed.WithMessage("minimum face region must be at least 1 pixel")
	}
	if err := s.liveness.Validate(); err != nil {
		return s, err
	}

	return s, nil
}
