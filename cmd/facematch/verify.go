package main

import (
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facematch/internal/config"
	"github.com/saturnino-fabrica-de-software/facematch/internal/service"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <document> <selfie>",
		Short: "Compare the portrait of a document with a selfie",
		Long: `Compare the largest face of the document image with the largest face of
the selfie. A declined verdict (no face, degenerate crop, ...) is printed with
ok=false and does not make the command fail.`,
		Example: `  facematch verify id-card.jpg selfie.jpg
  facematch verify --threshold 0.6 --liveness-gating id-card.jpg selfie.jpg`,
		Args: cobra.ExactArgs(2),
		RunE: runVerify,
	}

	addVerdictFlags(cmd)
	cmd.Flags().Bool("run-liveness", true, "Run liveness heuristics on the selfie")
	cmd.Flags().Bool("liveness-gating", false, "Decline the verdict when liveness fails; when unset LIVENESS_GATING applies")

	return cmd
}

func newVerifySingleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-single <image>",
		Short: "Verify a selfie in which the person holds the document",
		Long: `Find the document portrait and the live face in one frame. By default the
smallest face is the document portrait and the largest is the candidate; use
--document-box and --candidate-box to pick faces manually.`,
		Example: `  facematch verify-single holding-id.jpg
  facematch verify-single --document-box 40,310,60,70 holding-id.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: runVerifySingle,
	}

	addVerdictFlags(cmd)
	cmd.Flags().String("document-box", "", "Manual document portrait box as x,y,w,h")
	cmd.Flags().String("candidate-box", "", "Manual candidate face box as x,y,w,h")

	return cmd
}

// Unset flags leave the value to the environment, so the defaults shown in
// --help are the built-in ones.
func addVerdictFlags(cmd *cobra.Command) {
	d := config.DefaultDefaults()
	cmd.Flags().Float64("threshold", d.SimilarityThreshold,
		"Similarity threshold (0-1); when unset SIMILARITY_THRESHOLD applies")
	addScoreThresholdFlag(cmd)
}

func addScoreThresholdFlag(cmd *cobra.Command) {
	d := config.DefaultDefaults()
	cmd.Flags().Float64("score-threshold", d.DetectorScoreThreshold,
		"Detector score threshold (0-1); when unset DETECTOR_SCORE_THRESHOLD applies")
}

func runVerify(cmd *cobra.Command, args []string) error {
	document, err := readImage(args[0])
	if err != nil {
		return err
	}
	selfie, err := readImage(args[1])
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cmd)
	if err != nil {
		return err
	}

	resp, err := verifier.VerifyTwoImages(cmd.Context(), document, selfie, service.Options{
		SimilarityThreshold: optionalFloat(cmd, "threshold"),
		ScoreThreshold:      optionalFloat(cmd, "score-threshold"),
		RunLiveness:         optionalBool(cmd, "run-liveness"),
		LivenessGating:      optionalBool(cmd, "liveness-gating"),
	})
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), resp)
}

func runVerifySingle(cmd *cobra.Command, args []string) error {
	documentBox, err := optionalBox(cmd, "document-box")
	if err != nil {
		return err
	}
	candidateBox, err := optionalBox(cmd, "candidate-box")
	if err != nil {
		return err
	}

	image, err := readImage(args[0])
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cmd)
	if err != nil {
		return err
	}

	resp, err := verifier.VerifySingleImage(cmd.Context(), image, service.Options{
		SimilarityThreshold: optionalFloat(cmd, "threshold"),
		ScoreThreshold:      optionalFloat(cmd, "score-threshold"),
		DocumentBox:         documentBox,
		CandidateBox:        candidateBox,
	})
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), resp)
}
