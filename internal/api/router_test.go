package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facematch/internal/config"
	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facematch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facematch/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/facematch/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func texturedPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*7 + y*13) % 256)
			if (x/8+y/8)%2 == 0 {
				v = 255 - v
			}
			img.Set(x, y, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	data, err := imaging.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func uniformPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	data, err := imaging.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func newTestRouter(t *testing.T, rateLimit int) *fiber.App {
	t.Helper()

	p := mock.New()
	verifier := service.NewVerifier(p, p, config.DefaultDefaults(),
		service.WithLogger(discardLogger()),
		service.WithProviderName("mock"),
	)

	r := NewRouter(discardLogger(), &Dependencies{
		Verifier:           verifier,
		BodyLimitMB:        10,
		RateLimitPerMinute: rateLimit,
	})
	r.Setup()
	t.Cleanup(func() {
		_ = r.Shutdown()
	})

	return r.App()
}

func upload(t *testing.T, app *fiber.App, target string, files map[string][]byte) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, content := range files {
		part, err := writer.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRouter_VerifyEndToEnd(t *testing.T) {
	app := newTestRouter(t, 0)
	img := texturedPNG(t, 160, 160)

	resp := upload(t, app, "/v1/verify", map[string][]byte{"document": img, "selfie": img})
	require.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	var verdict domain.VerificationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verdict))

	assert.True(t, verdict.OK)
	assert.True(t, verdict.IsMatch)
	require.NotNil(t, verdict.Similarity)
	assert.InDelta(t, 1.0, *verdict.Similarity, 1e-6)
	assert.InDelta(t, 100.0, verdict.MatchPercent, 0.01)
	assert.Equal(t, domain.ModeTwoImages, verdict.Mode)
	assert.NotNil(t, verdict.Liveness)
}

func TestRouter_DeclinedVerdictIs200(t *testing.T) {
	app := newTestRouter(t, 0)
	flat := uniformPNG(t, 160, 160)

	resp := upload(t, app, "/v1/verify", map[string][]byte{"document": flat, "selfie": flat})
	require.Equal(t, 200, resp.StatusCode)

	var verdict domain.VerificationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verdict))

	assert.False(t, verdict.OK)
	assert.False(t, verdict.IsMatch)
	require.NotNil(t, verdict.Error)
	assert.Equal(t, domain.ReasonDegenerateEmbedding, verdict.Error.Code)
}

func TestRouter_InvalidImage(t *testing.T) {
	app := newTestRouter(t, 0)

	resp := upload(t, app, "/v1/detect", map[string][]byte{"file": []byte("not an image")})
	assert.Equal(t, 400, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "INVALID_IMAGE")
}

func TestRouter_RateLimit(t *testing.T) {
	app := newTestRouter(t, 1)
	img := texturedPNG(t, 80, 80)

	resp := upload(t, app, "/v1/detect", map[string][]byte{"file": img})
	assert.Equal(t, 200, resp.StatusCode)

	resp = upload(t, app, "/v1/detect", map[string][]byte{"file": img})
	assert.Equal(t, 429, resp.StatusCode)

	// probes are outside the limited group
	health, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, health.StatusCode)
}

func TestRouter_StatsRequiresPersistence(t *testing.T) {
	app := newTestRouter(t, 0)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestRouter_Ready(t *testing.T) {
	app := newTestRouter(t, 0)

	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
