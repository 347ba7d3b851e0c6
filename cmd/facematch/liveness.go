package main

import (
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facematch/internal/service"
)

func newLivenessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "liveness <image>",
		Short: "Run the passive liveness heuristics on an image",
		Long: `Report blur, brightness, face size and face count checks. The result is
advisory: it does not detect printed photos, screens or masks.`,
		Args: cobra.ExactArgs(1),
		RunE: runLiveness,
	}
}

func runLiveness(cmd *cobra.Command, args []string) error {
	image, err := readImage(args[0])
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cmd)
	if err != nil {
		return err
	}

	verdict, err := verifier.CheckLiveness(cmd.Context(), image, service.Options{})
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), verdict)
}
