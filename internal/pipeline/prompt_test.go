package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-visualizer/common"
)

func TestBuildInstruction(t *testing.T) {
	optimized := BuildInstruction(common.PromptStyleOptimized, "Terrazzo")
	assert.Contains(t, optimized, "Terrazzo")
	assert.Contains(t, optimized, "lighting")
	assert.Contains(t, optimized, "prompt text only")

	assert.Equal(t, genericInstruction, BuildInstruction(common.PromptStyleGeneric, "Terrazzo"))
}

func TestComposePrompt(t *testing.T) {
	tests := []struct {
		name        string
		style       string
		material    string
		description string
		want        string
	}{
		{
			name:        "optimized keeps description naming the material",
			style:       common.PromptStyleOptimized,
			material:    "Marble",
			description: "Polished white Marble floor reflecting the window light.",
			want:        "Polished white Marble floor reflecting the window light. " + QualitySuffix,
		},
		{
			name:        "optimized prefixes material written in another case",
			style:       common.PromptStyleOptimized,
			material:    "Oak Wood",
			description: "Warm OAK WOOD planks glowing in the evening light.",
			want:        "Replace the floor with Oak Wood. Warm OAK WOOD planks glowing in the evening light. " + QualitySuffix,
		},
		{
			name:        "keeps exclamation mark",
			style:       common.PromptStyleOptimized,
			material:    "Marble",
			description: "A stunning Marble floor!",
			want:        "A stunning Marble floor! " + QualitySuffix,
		},
		{
			name:        "keeps question mark",
			style:       common.PromptStyleGeneric,
			material:    "Slate",
			description: "Is the floor near the window?  ",
			want:        "Replace the floor with Slate. Is the floor near the window? " + QualitySuffix,
		},
		{
			name:        "optimized prefixes missing material",
			style:       common.PromptStyleOptimized,
			material:    "Oak Wood",
			description: "A glossy floor under soft daylight.",
			want:        "Replace the floor with Oak Wood. A glossy floor under soft daylight. " + QualitySuffix,
		},
		{
			name:        "optimized with empty description",
			style:       common.PromptStyleOptimized,
			material:    "Slate",
			description: "  ",
			want:        "Replace the floor with Slate. " + QualitySuffix,
		},
		{
			name:        "generic",
			style:       common.PromptStyleGeneric,
			material:    "Marble",
			description: "Modern kitchen, floor in the foreground.\n",
			want:        "Replace the floor with Marble. Modern kitchen, floor in the foreground. " + QualitySuffix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComposePrompt(tt.style, tt.material, tt.description)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, got, tt.material)
		})
	}
}

func TestNormalizeMaterial(t *testing.T) {
	assert.Equal(t, "Marble", NormalizeMaterial("", "Marble"))
	assert.Equal(t, "Marble", NormalizeMaterial(" \t", "Marble"))
	assert.Equal(t, "Oak Wood", NormalizeMaterial("  Oak Wood ", "Marble"))
}

func encodeTestImage(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	default:
		require.NoError(t, png.Encode(&buf, img))
	}
	return buf.Bytes()
}

func TestValidateImage(t *testing.T) {
	jpg := encodeTestImage(t, "jpeg")
	pngData := encodeTestImage(t, "png")
	const max = 5 << 20

	tests := []struct {
		name     string
		data     []byte
		declared string
		max      int64
		wantMime string
		wantErr  string
	}{
		{name: "jpeg", data: jpg, declared: "image/jpeg", max: max, wantMime: "image/jpeg"},
		{name: "png without declared type", data: pngData, max: max, wantMime: "image/png"},
		{name: "declared with params", data: pngData, declared: "image/PNG; foo=bar", max: max, wantMime: "image/png"},
		{name: "octet-stream falls back to sniffing", data: jpg, declared: "application/octet-stream", max: max, wantMime: "image/jpeg"},
		{name: "empty", data: nil, declared: "image/png", max: max, wantErr: "No image uploaded"},
		{name: "too large", data: pngData, declared: "image/png", max: 10, wantErr: "exceeds"},
		{name: "declared text", data: pngData, declared: "text/plain", max: max, wantErr: "Only image uploads"},
		{name: "bytes are not an image", data: []byte("hello world, not an image"), declared: "image/png", max: max, wantErr: "Only image uploads"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, err := ValidateImage(tt.data, tt.declared, tt.max)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, common.IsValidation(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMime, mime)
		})
	}
}
