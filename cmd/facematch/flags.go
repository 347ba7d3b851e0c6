package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// Flags are registered by the command constructors, so an error is a bug.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	val, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// optionalFloat returns nil unless the flag was set explicitly, so that
// the configured default applies.
func optionalFloat(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v := mustGetFloat64(cmd, name)
	return &v
}

func optionalBool(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v := mustGetBool(cmd, name)
	return &v
}

// optionalBox parses "x,y,w,h".
func optionalBox(cmd *cobra.Command, name string) (*domain.FaceBox, error) {
	raw := strings.TrimSpace(mustGetString(cmd, name))
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("--%s must be x,y,w,h", name)
	}

	var vals [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("--%s must be x,y,w,h: %w", name, err)
		}
		vals[i] = n
	}

	box := domain.FaceBox{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if !box.Valid() {
		return nil, fmt.Errorf("--%s needs positive w and h", name)
	}
	return &box, nil
}
