package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/facematch/internal/audit"
	"github.com/saturnino-fabrica-de-software/facematch/internal/config"
	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facematch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facematch/internal/liveness"
	"github.com/saturnino-fabrica-de-software/facematch/internal/matching"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider"
)

// Recorder persists a summary of each verdict. It never sees images or
// embeddings.
type Recorder interface {
	Create(ctx context.Context, rec *domain.VerificationRecord) error
}

// Document search strategies reported in VerificationResponse.DocumentSearch.
const (
	SearchStrategyDefault        = "default"
	SearchStrategyLowerThreshold = "lowerThreshold"
	SearchStrategyUpscale        = "upscale"
)

var documentSearchThresholds = []float64{0.4, 0.3}

const (
	documentUpscale = 2
	// upscaled side above which the retry is skipped
	maxUpscaledSide = 4096
	upscaleQuality  = 95
)

// Verifier orquestra detecção, papéis, embeddings, similaridade e liveness.
// Não guarda estado entre requisições; detector e embedder são compartilhados
// e usados apenas para leitura.
type Verifier struct {
	detector     provider.Detector
	embedder     provider.Embedder
	roles        matching.RoleStrategy
	defaults     config.Defaults
	pool         *Pool
	recorder     Recorder
	auditLogger  audit.Logger
	logger       *slog.Logger
	providerName string
}

type VerifierOption func(*Verifier)

func WithRoleStrategy(s matching.RoleStrategy) VerifierOption {
	return func(v *Verifier) {
		v.roles = s
	}
}

func WithRecorder(r Recorder) VerifierOption {
	return func(v *Verifier) {
		v.recorder = r
	}
}

func WithAuditLogger(l audit.Logger) VerifierOption {
	return func(v *Verifier) {
		v.auditLogger = l
	}
}

func WithLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = l
	}
}

// WithProviderName sets the provider label used in audit events.
func WithProviderName(name string) VerifierOption {
	return func(v *Verifier) {
		v.providerName = name
	}
}

// WithPool shares an existing pool instead of sizing one from defaults.Workers.
func WithPool(p *Pool) VerifierOption {
	return func(v *Verifier) {
		v.pool = p
	}
}

func NewVerifier(detector provider.Detector, embedder provider.Embedder, defaults config.Defaults, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		detector:    detector,
		embedder:    embedder,
		roles:       matching.NewAreaStrategy(),
		defaults:    defaults,
		auditLogger: &audit.NoOpLogger{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.pool == nil {
		v.pool = NewPool(defaults.Workers)
	}

	return v
}

func (v *Verifier) Defaults() config.Defaults {
	return v.defaults
}

type input struct {
	name string
	data []byte
	img  image.Image
}

func (v *Verifier) decode(name string, data []byte) (input, error) {
	if len(data) == 0 {
		return input{}, domain.ErrMissingImage.WithMessage(name + " image is required")
	}

	img, _, err := imaging.DecodeLimited(data, v.defaults.MaxImagePixels)
	if errors.Is(err, imaging.ErrTooLarge) {
		return input{}, domain.ErrInvalidImage.WithMessage(name + " image has too many pixels").WithError(err)
	}
	if err != nil {
		return input{}, domain.ErrInvalidImage.WithMessage(name + " image could not be decoded").WithError(err)
	}

	return input{name: name, data: data, img: img}, nil
}

// DetectFaces runs the detector alone.
func (v *Verifier) DetectFaces(ctx context.Context, data []byte, opts Options) (domain.DetectionResult, error) {
	s, err := v.settings(opts)
	if err != nil {
		return domain.DetectionResult{}, err
	}

	in, err := v.decode("image", data)
	if err != nil {
		return domain.DetectionResult{}, err
	}

	return v.detect(ctx, in.data, s.scoreThreshold)
}

// VerifyTwoImages compares the largest face of a document image with the
// largest face of a selfie.
func (v *Verifier) VerifyTwoImages(ctx context.Context, document, selfie []byte, opts Options) (*domain.VerificationResponse, error) {
	start := time.Now()

	s, err := v.settings(opts)
	if err != nil {
		return nil, err
	}

	doc, err := v.decode("document", document)
	if err != nil {
		return nil, err
	}
	sel, err := v.decode("selfie", selfie)
	if err != nil {
		return nil, err
	}

	resp := newResponse(domain.ModeTwoImages, s)

	var (
		docBoxes    []domain.FaceBox
		selfieBoxes []domain.FaceBox
		search      *domain.DocumentSearch
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, found, err := v.searchDocument(gctx, doc, s, func(boxes []domain.FaceBox) bool {
			return len(boxes) > 0
		})
		docBoxes, search = res.Boxes, found
		return err
	})
	g.Go(func() error {
		res, err := v.detect(gctx, sel.data, s.scoreThreshold)
		selfieBoxes = res.Boxes
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp.DocumentSearch = search
	resp.Faces.DocumentFaceCount = domain.IntPtr(len(docBoxes))
	resp.Faces.SelfieFaceCount = domain.IntPtr(len(selfieBoxes))

	if s.runLiveness {
		verdict := liveness.Check(sel.img, selfieBoxes, s.liveness)
		resp.Liveness = &verdict
		if !verdict.Passed {
			resp.AddWarning(domain.WarningLivenessFailed)
		}
	}

	res := v.roles.ResolveTwoStep(docBoxes, selfieBoxes)
	if v.applyRoles(ctx, resp, res) {
		return v.finish(ctx, resp, start), nil
	}

	if err := v.score(ctx, resp, doc, sel, res.Assignment, s); err != nil {
		return nil, err
	}

	if resp.OK && resp.Liveness != nil && !resp.Liveness.Passed && s.gating {
		v.decline(ctx, resp, domain.NewStageError(domain.StageLiveness, domain.ReasonLivenessFailed,
			"liveness checks failed: "+strings.Join(resp.Liveness.Reasons, ", "), nil))
	}

	return v.finish(ctx, resp, start), nil
}

// VerifySingleImage finds both the document portrait and the live face in
// one frame. Manual boxes in opts take precedence over the area heuristic.
func (v *Verifier) VerifySingleImage(ctx context.Context, data []byte, opts Options) (*domain.VerificationResponse, error) {
	start := time.Now()

	s, err := v.settings(opts)
	if err != nil {
		return nil, err
	}

	for _, b := range []*domain.FaceBox{opts.DocumentBox, opts.CandidateBox} {
		if b != nil && !b.Valid() {
			return nil, domain.ErrInvalidBox
		}
	}

	in, err := v.decode("image", data)
	if err != nil {
		return nil, err
	}

	overrides := matching.Overrides{
		Document:  opts.DocumentBox,
		Candidate: opts.CandidateBox,
	}

	// small card portraits are often missed at the default threshold
	det, search, err := v.searchDocument(ctx, in, s, func(boxes []domain.FaceBox) bool {
		return v.roles.ResolveSingle(boxes, overrides).Err == nil
	})
	if err != nil {
		return nil, err
	}

	resp := newResponse(domain.ModeSingleImage, s)
	resp.DocumentSearch = search
	resp.Faces.FaceCount = domain.IntPtr(det.FaceCount)

	res := v.roles.ResolveSingle(det.Boxes, overrides)
	if v.applyRoles(ctx, resp, res) {
		return v.finish(ctx, resp, start), nil
	}

	if err := v.score(ctx, resp, in, in, res.Assignment, s); err != nil {
		return nil, err
	}

	return v.finish(ctx, resp, start), nil
}

// CheckLiveness runs only the passive liveness heuristics on one image.
func (v *Verifier) CheckLiveness(ctx context.Context, data []byte, opts Options) (*domain.LivenessVerdict, error) {
	s, err := v.settings(opts)
	if err != nil {
		return nil, err
	}

	in, err := v.decode("image", data)
	if err != nil {
		return nil, err
	}

	det, err := v.detect(ctx, in.data, s.scoreThreshold)
	if err != nil {
		return nil, err
	}

	verdict := liveness.Check(in.img, det.Boxes, s.liveness)

	v.logAudit(ctx, audit.Event{
		EventType: audit.EventLivenessChecked,
		Success:   verdict.Passed,
		Reason:    strings.Join(verdict.Reasons, ","),
		Metadata: map[string]string{
			"faces_count": strconv.Itoa(det.FaceCount),
		},
	})

	return &verdict, nil
}

func newResponse(mode domain.VerificationMode, s settings) *domain.VerificationResponse {
	return &domain.VerificationResponse{
		Mode:              mode,
		SimilarityVerdict: domain.SimilarityVerdict{Threshold: s.similarityThreshold},
		Warnings:          []string{},
	}
}

// applyRoles copies the resolution into resp and reports whether the
// pipeline stops here.
func (v *Verifier) applyRoles(ctx context.Context, resp *domain.VerificationResponse, res matching.Resolution) bool {
	resp.Roles = res.Assignment
	for _, w := range res.Warnings {
		resp.AddWarning(w)
	}

	if res.Err != nil {
		v.decline(ctx, resp, res.Err)
		return true
	}
	return false
}

// score crops, embeds and compares the two assigned faces. Recoverable
// failures decline resp; only adapter failures are returned.
func (v *Verifier) score(ctx context.Context, resp *domain.VerificationResponse, doc, cand input, roles domain.RoleAssignment, s settings) error {
	docRegion, stageErr := crop(doc, *roles.DocumentBox, "document", s.minRegion)
	if stageErr != nil {
		v.decline(ctx, resp, stageErr)
		return nil
	}
	candRegion, stageErr := crop(cand, *roles.CandidateBox, "candidate", s.minRegion)
	if stageErr != nil {
		v.decline(ctx, resp, stageErr)
		return nil
	}

	var docEmb, candEmb domain.Embedding
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docEmb, err = v.embed(gctx, docRegion)
		return err
	})
	g.Go(func() error {
		var err error
		candEmb, err = v.embed(gctx, candRegion)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, provider.ErrEmbedding) {
			v.decline(ctx, resp, domain.NewStageError(domain.StageEmbed, domain.ReasonDegenerateEmbedding,
				"embedder rejected the face region", err))
			return nil
		}
		return v.adapterError(ctx, "embed", err)
	}

	similarity, err := matching.Score(docEmb, candEmb)
	if err != nil {
		v.decline(ctx, resp, domain.NewStageError(domain.StageScore, domain.ReasonDegenerateEmbedding,
			"embedding magnitude is too small to compare", err))
		return nil
	}

	resp.SimilarityVerdict = matching.Decide(similarity, s.similarityThreshold, s.margin)
	resp.OK = true
	return nil
}

// crop enforces at least provider.MinRegionSize on both sides, whatever
// minRegion the caller asked for.
func crop(in input, box domain.FaceBox, role string, minRegion int) (image.Image, *domain.StageError) {
	minRegion = max(minRegion, provider.MinRegionSize)
	clamped := box.Clamp(in.img.Bounds())
	if clamped.W < minRegion || clamped.H < minRegion {
		return nil, domain.NewStageError(domain.StageCrop, domain.ReasonDegenerateCrop,
			fmt.Sprintf("%s face region %dx%d is below the %d pixel minimum", role, clamped.W, clamped.H, minRegion), nil)
	}
	return imaging.Crop(in.img, clamped.Rect()), nil
}

// searchDocument detects the image holding the document portrait until
// accept is satisfied: first at the configured score threshold, then at
// lower thresholds and finally on a 2x upscaled copy, whose boxes are
// mapped back to original coordinates. When no attempt is accepted the
// first detection is returned with a nil search.
func (v *Verifier) searchDocument(ctx context.Context, in input, s settings, accept func([]domain.FaceBox) bool) (domain.DetectionResult, *domain.DocumentSearch, error) {
	first, err := v.detect(ctx, in.data, s.scoreThreshold)
	if err != nil {
		return domain.DetectionResult{}, nil, err
	}
	if accept(first.Boxes) {
		return first, &domain.DocumentSearch{Strategy: SearchStrategyDefault, ScoreThreshold: s.scoreThreshold, Scale: 1}, nil
	}
	if !s.documentSearch {
		return first, nil, nil
	}

	lowest := s.scoreThreshold
	for _, threshold := range documentSearchThresholds {
		if threshold >= s.scoreThreshold {
			continue
		}
		lowest = threshold

		res, err := v.detect(ctx, in.data, threshold)
		if err != nil {
			return domain.DetectionResult{}, nil, err
		}
		if accept(res.Boxes) {
			return res, &domain.DocumentSearch{Strategy: SearchStrategyLowerThreshold, ScoreThreshold: threshold, Scale: 1}, nil
		}
	}

	bounds := in.img.Bounds()
	if bounds.Dx()*documentUpscale > maxUpscaledSide || bounds.Dy()*documentUpscale > maxUpscaledSide {
		return first, nil, nil
	}

	upscaled, err := imaging.EncodeJPEG(imaging.Scale(in.img, documentUpscale), upscaleQuality)
	if err != nil {
		return domain.DetectionResult{}, nil, fmt.Errorf("upscale %s image: %w", in.name, err)
	}

	res, err := v.detect(ctx, upscaled, lowest)
	if err != nil {
		// the provider may refuse the larger payload; that only ends the search
		if errors.Is(err, domain.ErrInvalidImage) {
			v.logger.DebugContext(ctx, "upscaled image rejected by detector", "image", in.name, "error", err)
			return first, nil, nil
		}
		return domain.DetectionResult{}, nil, err
	}

	boxes := make([]domain.FaceBox, 0, len(res.Boxes))
	for _, b := range res.Boxes {
		boxes = append(boxes, downscale(b, documentUpscale))
	}
	if !accept(boxes) {
		return first, nil, nil
	}

	return domain.NewDetectionResult(boxes), &domain.DocumentSearch{
		Strategy:       SearchStrategyUpscale,
		ScoreThreshold: lowest,
		Scale:          documentUpscale,
	}, nil
}

func downscale(b domain.FaceBox, factor int) domain.FaceBox {
	f := float64(factor)
	return domain.FaceBox{
		X:     int(math.Round(float64(b.X) / f)),
		Y:     int(math.Round(float64(b.Y) / f)),
		W:     max(1, int(math.Round(float64(b.W)/f))),
		H:     max(1, int(math.Round(float64(b.H)/f))),
		Score: b.Score,
	}
}

func (v *Verifier) detect(ctx context.Context, data []byte, threshold float64) (domain.DetectionResult, error) {
	var res domain.DetectionResult
	err := v.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = v.detector.Detect(ctx, data, threshold)
		return err
	})
	if err != nil {
		return domain.DetectionResult{}, v.adapterError(ctx, "detect", err)
	}
	return res, nil
}

func (v *Verifier) embed(ctx context.Context, region image.Image) (domain.Embedding, error) {
	var emb domain.Embedding
	err := v.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		emb, err = v.embedder.Embed(ctx, region)
		return err
	})
	return emb, err
}

// adapterError maps detector and embedder failures to transport errors.
// Context errors pass through untouched.
func (v *Verifier) adapterError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, provider.ErrDetection):
		return domain.ErrInvalidImage.WithError(err)
	default:
		v.logger.ErrorContext(ctx, "provider failure",
			"op", op,
			"provider", v.providerName,
			"error", err,
		)
		return domain.ErrProviderUnavailable.WithError(err)
	}
}

func (v *Verifier) decline(ctx context.Context, resp *domain.VerificationResponse, err *domain.StageError) {
	v.logger.WarnContext(ctx, "verification declined",
		"mode", resp.Mode,
		"stage", err.Stage,
		"reason", err.Reason,
		"error", err.Error(),
	)
	resp.Decline(err)
}

// finish stamps latency, emits the audit event and records the verdict.
// Audit and recorder failures are logged and never change the verdict.
func (v *Verifier) finish(ctx context.Context, resp *domain.VerificationResponse, start time.Time) *domain.VerificationResponse {
	resp.LatencyMs = time.Since(start).Milliseconds()

	event := audit.Event{
		EventType: audit.EventVerificationComplete,
		Mode:      string(resp.Mode),
		Success:   resp.OK,
		Metadata: map[string]string{
			"is_match":      strconv.FormatBool(resp.IsMatch),
			"match_percent": strconv.FormatFloat(resp.MatchPercent, 'f', 2, 64),
			"latency_ms":    strconv.FormatInt(resp.LatencyMs, 10),
		},
	}
	if resp.Error != nil {
		event.Reason = string(resp.Error.Code)
	}
	if resp.Similarity != nil {
		event.Metadata["similarity"] = strconv.FormatFloat(*resp.Similarity, 'f', 4, 64)
	}
	v.logAudit(ctx, event)

	if v.recorder != nil {
		if err := v.recorder.Create(ctx, domain.NewVerificationRecord(resp)); err != nil {
			v.logger.ErrorContext(ctx, "failed to record verification",
				"mode", resp.Mode,
				"error", err,
			)
		}
	}

	return resp
}

func (v *Verifier) logAudit(ctx context.Context, event audit.Event) {
	event.RequestID = audit.RequestID(ctx)
	event.IPAddress, event.UserAgent = audit.Client(ctx)
	event.Provider = v.providerName

	if err := v.auditLogger.Log(ctx, event); err != nil {
		v.logger.WarnContext(ctx, "audit log failed", "event_type", event.EventType, "error", err)
	}
}
