package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"room-visualizer/internal/genai/stability"
	"room-visualizer/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStabilityInpainter_ForwardsRequest(t *testing.T) {
	var prompt, format, imageType string
	var mask []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		prompt = r.FormValue("prompt")
		format = r.FormValue("output_format")

		_, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		imageType = hdr.Header.Get("Content-Type")

		m, _, err := r.FormFile("mask")
		require.NoError(t, err)
		mask, _ = io.ReadAll(m)

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nout"))
	}))
	defer srv.Close()

	client, err := stability.NewClient(stability.Config{URL: srv.URL, APIKey: "sk-test"})
	require.NoError(t, err)

	out, err := stabilityInpainter{client: client}.Inpaint(context.Background(), pipeline.InpaintRequest{
		Image:         []byte("room"),
		ImageMimeType: "image/jpeg",
		Mask:          []byte("mask"),
		Prompt:        "Replace the floor with Oak Wood.",
		OutputFormat:  pipeline.OutputFormat,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nout"), out)
	assert.Equal(t, "Replace the floor with Oak Wood.", prompt)
	assert.Equal(t, "png", format)
	assert.Equal(t, "image/jpeg", imageType)
	assert.Equal(t, []byte("mask"), mask)
}
