package main

import (
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facematch/internal/service"
)

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "List the faces found in an image",
		Example: `  facematch detect group.jpg
  facematch detect --score-threshold 0.8 group.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: runDetect,
	}

	addScoreThresholdFlag(cmd)

	return cmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	image, err := readImage(args[0])
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cmd)
	if err != nil {
		return err
	}

	result, err := verifier.DetectFaces(cmd.Context(), image, service.Options{
		ScoreThreshold: optionalFloat(cmd, "score-threshold"),
	})
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), result)
}
