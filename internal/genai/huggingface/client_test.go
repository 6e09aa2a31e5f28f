package huggingface

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"room-visualizer/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{URL: srv.URL, Token: "hf_test"})
	require.NoError(t, err)
	return client
}

func TestSegment_RawMask(t *testing.T) {
	var gotAuth, gotType string
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	})

	mask, err := client.Segment(context.Background(), []byte("room"))
	require.NoError(t, err)

	assert.Equal(t, pngHeader, mask)
	assert.Equal(t, "Bearer hf_test", gotAuth)
	assert.Equal(t, "application/octet-stream", gotType)
	assert.Equal(t, []byte("room"), gotBody)
}

func TestSegment_SniffsUntypedImage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pngHeader)
	})

	mask, err := client.Segment(context.Background(), []byte("room"))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, mask)
}

func TestSegment_SegmentList(t *testing.T) {
	floor := base64.StdEncoding.EncodeToString([]byte("floor-mask"))
	wall := base64.StdEncoding.EncodeToString([]byte("wall-mask"))
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"label":"wall","score":0.9,"mask":%q},{"label":"Floor","score":0.8,"mask":%q}]`, wall, floor)
	})

	mask, err := client.Segment(context.Background(), []byte("room"))
	require.NoError(t, err)
	assert.Equal(t, []byte("floor-mask"), mask)
}

func TestSegment_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		ctype      string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"non-2xx", http.StatusServiceUnavailable, "application/json", `{"error":"Model is loading"}`, http.StatusServiceUnavailable, "Model is loading"},
		{"no floor segment", http.StatusOK, "application/json", `[{"label":"wall","mask":""}]`, 0, `no "floor" segment`},
		{"bad json", http.StatusOK, "application/json", `{`, 0, "failed to parse segments"},
		{"text body", http.StatusOK, "text/plain", "hello", 0, "unexpected response content type"},
		{"empty body", http.StatusOK, "image/png", "", 0, "empty response body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.ctype)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Segment(context.Background(), []byte("room"))
			require.Error(t, err)

			var upstream *common.UpstreamError
			require.True(t, errors.As(err, &upstream))
			assert.Equal(t, "huggingface", upstream.Provider)
			assert.Equal(t, tt.wantStatus, upstream.StatusCode)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
