package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facematch/internal/config"
	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facematch/internal/imaging"
)

func useMockProviders(t *testing.T) {
	t.Helper()
	t.Setenv("PROVIDER_TYPE", "mock")
	t.Setenv("EMBEDDER_TYPE", "mock")
	t.Setenv("DATABASE_URL", "")
	t.Chdir(t.TempDir()) // no stray .env
}

func writeTexturedPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*5 + y*11) % 256)
			if (x/6+y/6)%2 == 0 {
				v = 255 - v
			}
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: v / 3, A: 255})
		}
	}
	data, err := imaging.EncodePNG(img)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

func TestVerifyCommand(t *testing.T) {
	dir := t.TempDir()
	useMockProviders(t)
	img := writeTexturedPNG(t, dir, "face.png", 120, 120)

	out, err := execute(t, "verify", img, img)
	require.NoError(t, err)

	var resp domain.VerificationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.OK)
	assert.True(t, resp.IsMatch)
	assert.Equal(t, domain.ModeTwoImages, resp.Mode)
	assert.NotNil(t, resp.Liveness)
}

func TestVerifyCommand_Flags(t *testing.T) {
	dir := t.TempDir()
	useMockProviders(t)
	img := writeTexturedPNG(t, dir, "face.png", 120, 120)

	out, err := execute(t, "verify", "--threshold", "0.9", "--run-liveness=false", img, img)
	require.NoError(t, err)

	var resp domain.VerificationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 0.9, resp.Threshold)
	assert.Nil(t, resp.Liveness)
}

func TestVerifyCommand_InvalidThreshold(t *testing.T) {
	dir := t.TempDir()
	useMockProviders(t)
	img := writeTexturedPNG(t, dir, "face.png", 120, 120)

	_, err := execute(t, "verify", "--threshold", "2", img, img)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
}

func TestVerdictFlags_Defaults(t *testing.T) {
	d := config.DefaultDefaults()

	tests := []struct {
		name    string
		cmd     *cobra.Command
		flag    string
		want    float64
		envName string
	}{
		{"verify threshold", newVerifyCmd(), "threshold", d.SimilarityThreshold, "SIMILARITY_THRESHOLD"},
		{"verify score threshold", newVerifyCmd(), "score-threshold", d.DetectorScoreThreshold, "DETECTOR_SCORE_THRESHOLD"},
		{"single threshold", newVerifySingleCmd(), "threshold", d.SimilarityThreshold, "SIMILARITY_THRESHOLD"},
		{"detect score threshold", newDetectCmd(), "score-threshold", d.DetectorScoreThreshold, "DETECTOR_SCORE_THRESHOLD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, strconv.FormatFloat(tt.want, 'g', -1, 64), f.DefValue)
			assert.Contains(t, f.Usage, tt.envName)
		})
	}
}

func TestVerifyCommand_ThresholdFromEnv(t *testing.T) {
	dir := t.TempDir()
	useMockProviders(t)
	t.Setenv("SIMILARITY_THRESHOLD", "0.8")
	img := writeTexturedPNG(t, dir, "face.png", 120, 120)

	out, err := execute(t, "verify", "--run-liveness=false", img, img)
	require.NoError(t, err)

	var resp domain.VerificationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 0.8, resp.Threshold)
}

func TestVerifyCommand_MissingFile(t *testing.T) {
	useMockProviders(t)

	_, err := execute(t, "verify", "nope.png", "nope.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read image")
}

func TestVerifySingleCommand(t *testing.T) {
	dir := t.TempDir()
	useMockProviders(t)
	img := writeTexturedPNG(t, dir, "frame.png", 200, 200)

	// the mock detector finds one face, so a manual document box is needed
	out, err := execute(t, "verify-single", "--document-box", "0,0,40,40", img)
	require.NoError(t, err)

	var resp domain.VerificationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, domain.ModeSingleImage, resp.Mode)
	require.NotNil(t, resp.Roles.DocumentBox)
	assert.Equal(t, 40, resp.Roles.DocumentBox.W)
	assert.Contains(t, resp.Warnings, domain.WarningDocumentBoxNotDetected)
}

func TestVerifySingleCommand_WithoutBoxesDeclines(t *testing.T) {
	dir := t.TempDir()
	useMockProviders(t)
	img := writeTexturedPNG(t, dir, "frame.png", 200, 200)

	out, err := execute(t, "verify-single", img)
	require.NoError(t, err)

	var resp domain.VerificationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.ReasonInsufficientFaces, resp.Error.Code)
}

func TestVerifySingleCommand_BadBox(t *testing.T) {
	useMockProviders(t)

	_, err := execute(t, "verify-single", "--candidate-box", "1,2,3", "x.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x,y,w,h")
}

func TestDetectCommand(t *testing.T) {
	dir := t.TempDir()
	useMockProviders(t)
	img := writeTexturedPNG(t, dir, "face.png", 100, 80)

	out, err := execute(t, "detect", img)
	require.NoError(t, err)

	var result domain.DetectionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, 1, result.FaceCount)
	assert.Equal(t, domain.FaceBox{X: 25, Y: 20, W: 50, H: 40, Score: 0.99}, result.Boxes[0])
}

func TestLivenessCommand(t *testing.T) {
	dir := t.TempDir()
	useMockProviders(t)
	img := writeTexturedPNG(t, dir, "face.png", 100, 100)

	out, err := execute(t, "liveness", img)
	require.NoError(t, err)

	var verdict domain.LivenessVerdict
	require.NoError(t, json.Unmarshal([]byte(out), &verdict))
	assert.Equal(t, 1, verdict.Metrics.FaceCount)
	assert.InDelta(t, 0.25, verdict.Metrics.FaceSizeRatio, 1e-9)
}

func TestStatsCommand_RequiresDatabase(t *testing.T) {
	useMockProviders(t)

	_, err := execute(t, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestEnvFileFlag(t *testing.T) {
	dir := t.TempDir()
	useMockProviders(t)
	t.Setenv("PROVIDER_TYPE", "")
	require.NoError(t, os.Unsetenv("PROVIDER_TYPE"))

	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PROVIDER_TYPE=unknown\n"), 0o600))
	img := writeTexturedPNG(t, dir, "face.png", 100, 100)

	_, err := execute(t, "--env-file", envFile, "detect", img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVIDER_TYPE")
}
