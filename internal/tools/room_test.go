package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-visualizer/common"
	"room-visualizer/internal/history"
	"room-visualizer/internal/pipeline"
	"room-visualizer/internal/utils"
)

type fakeGenerator struct {
	calls int
	req   pipeline.GenerationRequest
	err   error
}

func (f *fakeGenerator) Run(ctx context.Context, req pipeline.GenerationRequest) (*pipeline.GenerationResult, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	material := pipeline.NormalizeMaterial(req.Material, "Marble")
	return &pipeline.GenerationResult{
		Image:    []byte("\x89PNG\r\n\x1a\nfake"),
		MimeType: "image/png",
		Prompt:   "Replace the floor with " + material + ". " + pipeline.QualitySuffix,
		Material: material,
	}, nil
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return utils.EncodeDataURI("image/png", buf.Bytes())
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatalf("no text content in result")
	return ""
}

func newRoomTools(t *testing.T, gen pipeline.Generator) (*roomTools, *history.SQLiteStore) {
	t.Helper()
	store, err := history.OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &roomTools{
		generator:      gen,
		store:          store,
		recorder:       history.NewRecorder(store),
		maxUploadBytes: 5 << 20,
	}, store
}

func TestRegisterRoomTools(t *testing.T) {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	assert.Error(t, RegisterRoomTools(s, nil, nil, nil, 5<<20))
	assert.NoError(t, RegisterRoomTools(s, &fakeGenerator{}, nil, history.NewRecorder(nil), 5<<20))
}

func TestGenerateRoom_ReturnsImageAndRecords(t *testing.T) {
	gen := &fakeGenerator{}
	rt, store := newRoomTools(t, gen)

	res, err := rt.generateRoom(context.Background(), callRequest(map[string]any{
		"image_url": pngDataURI(t),
		"material":  "Oak Wood",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	rt.recorder.Wait()

	assert.Equal(t, "Oak Wood", gen.req.Material)
	assert.Equal(t, "image/png", gen.req.MimeType)
	assert.Contains(t, resultText(t, res), "Oak Wood")

	var img mcp.ImageContent
	for _, c := range res.Content {
		if ic, ok := c.(mcp.ImageContent); ok {
			img = ic
		}
	}
	assert.Equal(t, "image/png", img.MIMEType)
	decoded, err := base64.StdEncoding.DecodeString(img.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nfake"), decoded)

	records, err := store.FindRecent(context.Background(), history.MaxRecent)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Oak Wood", records[0].Material)
}

func TestGenerateRoom_Errors(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		genErr    error
		wantCalls int
		wantText  string
	}{
		{name: "missing image_url", args: map[string]any{}, wantText: "image_url"},
		{name: "unsupported reference", args: map[string]any{"image_url": "ftp://example.com/a.png"}, wantText: "failed to load image"},
		{
			name:     "not an image",
			args:     map[string]any{"image_url": utils.EncodeDataURI("text/plain", []byte("hello"))},
			wantText: "Only image uploads",
		},
		{
			name:      "stage failure",
			args:      map[string]any{"image_url": pngDataURI(t)},
			genErr:    &common.StageError{Stage: common.StageSegment, Err: errors.New("boom")},
			wantCalls: 1,
			wantText:  "segment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{err: tt.genErr}
			rt, store := newRoomTools(t, gen)

			res, err := rt.generateRoom(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			rt.recorder.Wait()

			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.wantText)
			assert.Equal(t, tt.wantCalls, gen.calls)

			records, err := store.FindRecent(context.Background(), history.MaxRecent)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestListHistory(t *testing.T) {
	rt, store := newRoomTools(t, &fakeGenerator{})
	ctx := context.Background()
	for _, m := range []string{"Marble", "Oak Wood", "Slate"} {
		require.NoError(t, store.Create(ctx, &history.Record{Material: m, OptimizedPrompt: "p", ImageDataURI: "data:image/png;base64,AA=="}))
	}

	res, err := rt.listHistory(ctx, callRequest(map[string]any{"limit": 2}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var records []history.Record
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "Slate", records[0].Material)
	assert.Equal(t, "Oak Wood", records[1].Material)
}

func TestListHistory_Disabled(t *testing.T) {
	rt := &roomTools{generator: &fakeGenerator{}, recorder: history.NewRecorder(nil)}

	res, err := rt.listHistory(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
