package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facematch/internal/service"
)

const (
	defaultMaxImageSize = 10 * 1024 * 1024 // 10MB
)

// FaceService is the pipeline the handler drives.
type FaceService interface {
	DetectFaces(ctx context.Context, image []byte, opts service.Options) (domain.DetectionResult, error)
	VerifyTwoImages(ctx context.Context, document, selfie []byte, opts service.Options) (*domain.VerificationResponse, error)
	VerifySingleImage(ctx context.Context, image []byte, opts service.Options) (*domain.VerificationResponse, error)
	CheckLiveness(ctx context.Context, image []byte, opts service.Options) (*domain.LivenessVerdict, error)
}

// FaceHandler handles the verification endpoints
type FaceHandler struct {
	service FaceService
	logger  *slog.Logger

	// MaxImageSize is the per-file upload limit in bytes
	MaxImageSize int64
}

// NewFaceHandler creates a new FaceHandler instance
func NewFaceHandler(service FaceService, logger *slog.Logger) *FaceHandler {
	return &FaceHandler{
		service:      service,
		logger:       logger,
		MaxImageSize: defaultMaxImageSize,
	}
}

// Detect POST /v1/detect - list the faces found in one image
func (h *FaceHandler) Detect(c *fiber.Ctx) error {
	scoreThreshold, err := queryFloat(c, "score_threshold")
	if err != nil {
		return err
	}

	image, err := h.formImage(c, "file")
	if err != nil {
		return err
	}

	result, err := h.service.DetectFaces(c.UserContext(), image, service.Options{
		ScoreThreshold: scoreThreshold,
	})
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// Verify POST /v1/verify - compare a document image with a selfie
func (h *FaceHandler) Verify(c *fiber.Ctx) error {
	var opts service.Options
	var err error

	if opts.SimilarityThreshold, err = queryFloat(c, "threshold"); err != nil {
		return err
	}
	if opts.ScoreThreshold, err = queryFloat(c, "score_threshold"); err != nil {
		return err
	}
	if opts.RunLiveness, err = queryBool(c, "run_liveness"); err != nil {
		return err
	}
	if opts.LivenessGating, err = queryBool(c, "liveness_gating"); err != nil {
		return err
	}

	document, err := h.formImage(c, "document")
	if err != nil {
		return err
	}
	selfie, err := h.formImage(c, "selfie")
	if err != nil {
		return err
	}

	resp, err := h.service.VerifyTwoImages(c.UserContext(), document, selfie, opts)
	if err != nil {
		return err
	}

	h.logVerdict(c, resp)
	return c.JSON(resp)
}

// VerifySingle POST /v1/verify_single - document held next to the face in one frame
func (h *FaceHandler) VerifySingle(c *fiber.Ctx) error {
	var opts service.Options
	var err error

	if opts.SimilarityThreshold, err = queryFloat(c, "threshold"); err != nil {
		return err
	}
	if opts.ScoreThreshold, err = queryFloat(c, "score_threshold"); err != nil {
		return err
	}

	image, err := h.formImage(c, "file")
	if err != nil {
		return err
	}

	if opts.CandidateBox, err = formBox(c, "candidate_box"); err != nil {
		return err
	}
	if opts.DocumentBox, err = formBox(c, "document_box"); err != nil {
		return err
	}

	resp, err := h.service.VerifySingleImage(c.UserContext(), image, opts)
	if err != nil {
		return err
	}

	h.logVerdict(c, resp)
	return c.JSON(resp)
}

// CheckLiveness POST /v1/liveness - passive quality heuristics on one image
func (h *FaceHandler) CheckLiveness(c *fiber.Ctx) error {
	image, err := h.formImage(c, "file")
	if err != nil {
		return err
	}

	verdict, err := h.service.CheckLiveness(c.UserContext(), image, service.Options{})
	if err != nil {
		return err
	}

	return c.JSON(verdict)
}

func (h *FaceHandler) logVerdict(c *fiber.Ctx, resp *domain.VerificationResponse) {
	attrs := []any{
		slog.String("mode", string(resp.Mode)),
		slog.Bool("ok", resp.OK),
		slog.Bool("is_match", resp.IsMatch),
		slog.Int64("latency_ms", resp.LatencyMs),
	}
	if resp.Error != nil {
		attrs = append(attrs, slog.String("reason", string(resp.Error.Code)))
	}
	h.logger.DebugContext(c.UserContext(), "verification verdict", attrs...)
}

// formImage reads a multipart file field. Format checks are left to the
// decoder so that an unsupported upload is reported as INVALID_IMAGE.
func (h *FaceHandler) formImage(c *fiber.Ctx, field string) ([]byte, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, domain.ErrMissingImage.WithMessage(field + " file is required")
	}

	if file.Size == 0 {
		return nil, domain.ErrMissingImage.WithMessage(field + " file is empty")
	}
	if file.Size > h.MaxImageSize {
		return nil, domain.ErrInvalidImage.WithMessage(fmt.Sprintf("%s file exceeds %d bytes", field, h.MaxImageSize))
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return data, nil
}

// formBox parses an optional {"x","y","w","h"} form field.
func formBox(c *fiber.Ctx, field string) (*domain.FaceBox, error) {
	raw := strings.TrimSpace(c.FormValue(field))
	if raw == "" {
		return nil, nil
	}

	var box domain.FaceBox
	if err := json.Unmarshal([]byte(raw), &box); err != nil {
		return nil, domain.ErrInvalidBox.WithMessage(field + " must be a JSON object {x,y,w,h}").WithError(err)
	}
	if !box.Valid() {
		return nil, domain.ErrInvalidBox.WithMessage(field + " needs positive w and h")
	}

	return &box, nil
}

func queryFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.ErrValidationFailed.WithMessage(key + " must be a number").WithError(err)
	}
	return &v, nil
}

func queryBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.ErrValidationFailed.WithMessage(key + " must be true or false").WithError(err)
	}
	return &v, nil
}
