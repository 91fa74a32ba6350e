package main

import (
	"errors"
	"testing"

	"github.com/pierre-platform/pierre/pkg/errx"
)

func TestExitCodeFor(t *testing.T) {
	cryptoErrors := errx.NewRegistry("CRYPTO")
	missingKey := cryptoErrors.Register("MASTER_KEY_MISSING", errx.TypeInternal, 500, "master key missing")
	invalidKey := cryptoErrors.Register("MASTER_KEY_INVALID", errx.TypeInternal, 500, "master key invalid")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain cobra usage error", errors.New("unknown command"), exitUsage},
		{"validation error", errx.Validation("missing --tenant"), exitUsage},
		{"master key missing", cryptoErrors.New(missingKey), exitPrecondition},
		{"master key invalid", cryptoErrors.New(invalidKey), exitPrecondition},
		{"not found is operational", errx.New("tenant not found", errx.TypeNotFound), exitOperational},
		{"internal is operational", errx.New("db write failed", errx.TypeInternal), exitOperational},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
