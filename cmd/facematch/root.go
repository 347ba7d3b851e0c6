package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "facematch",
		Short: "Compare identity document portraits with live selfies",
		Long: `facematch runs the face verification pipeline on local image files.
It uses the same detector, embedder and defaults as the HTTP API, configured
through the same environment variables (PROVIDER_TYPE, DEEPFACE_URL, ...).
Every command prints indented JSON on stdout.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				return godotenv.Load(envFile)
			}
			// .env file is optional, don't fail if not found
			_ = godotenv.Load()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file instead of ./.env")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log pipeline stages and audit events to stderr")

	root.AddCommand(
		newDetectCmd(),
		newVerifyCmd(),
		newVerifySingleCmd(),
		newLivenessCmd(),
		newStatsCmd(),
	)

	return root
}
