package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teazle/autosocialai/internal/config"
	"github.com/teazle/autosocialai/internal/infrastructure/llm"
	"github.com/teazle/autosocialai/internal/infrastructure/replicate"
	"github.com/teazle/autosocialai/internal/validation"
)

func TestThresholdsFollowConfig(t *testing.T) {
	t.Parallel()

	v := config.DefaultValidation()
	require.Equal(t, validation.DefaultThresholds(), thresholdsFromConfig(v))

	v.ApproveScore = 80
	v.ExtremeLongCaptionLen = 300
	got := thresholdsFromConfig(v)
	require.Equal(t, 80, got.Approve)
	require.Equal(t, 300, got.LongCaptionWords)
}

func TestCheckImageModel(t *testing.T) {
	t.Parallel()

	for _, model := range replicate.ImageModels {
		require.NoError(t, checkImageModel(model))
	}
	require.Error(t, checkImageModel("stability-ai/sdxl"))
	require.Error(t, checkImageModel(""))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Load()
	cfg.Server.Addr = ""
	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestNewValidatorBuildsOCRChain(t *testing.T) {
	t.Parallel()

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v, err := newValidator(cfg, llm.NewClient(cfg.LLM), replicate.NewClient(cfg.Replicate.BaseURL, "token"), logger)
	require.NoError(t, err)
	require.NotNil(t, v)
}
