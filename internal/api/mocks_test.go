package api

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"room-visualizer/internal/history"
	"room-visualizer/internal/pipeline"
)

type fakeDescriber struct {
	calls atomic.Int32
	text  string
	err   error
}

func (f *fakeDescriber) Describe(ctx context.Context, image []byte, mimeType string, instruction string) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

type fakeSegmenter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSegmenter) Segment(ctx context.Context, image []byte) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("mask"), nil
}

type fakeInpainter struct {
	calls  atomic.Int32
	output []byte
	err    error
	prompt string
}

func (f *fakeInpainter) Inpaint(ctx context.Context, req pipeline.InpaintRequest) ([]byte, error) {
	f.calls.Add(1)
	f.prompt = req.Prompt
	return f.output, f.err
}

// failingStore 模拟不可用的数据库
type failingStore struct {
	creates atomic.Int32
}

func (f *failingStore) Create(ctx context.Context, rec *history.Record) error {
	f.creates.Add(1)
	return errors.New("connection refused")
}

func (f *failingStore) FindRecent(ctx context.Context, limit int) ([]history.Record, error) {
	return nil, errors.New("connection refused")
}

type testEnv struct {
	describer *fakeDescriber
	segmenter *fakeSegmenter
	inpainter *fakeInpainter
	store     history.Store
	recorder  *history.Recorder
	handler   http.Handler
}

func (e *testEnv) providerCalls() int32 {
	return e.describer.calls.Load() + e.segmenter.calls.Load() + e.inpainter.calls.Load()
}

func newTestEnv(t *testing.T, store history.Store, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		describer: &fakeDescriber{text: "A sunny living room with wide windows."},
		segmenter: &fakeSegmenter{},
		inpainter: &fakeInpainter{output: testImage(t, "png", 8, 8)},
		store:     store,
	}

	p, err := pipeline.New(env.describer, env.segmenter, env.inpainter)
	require.NoError(t, err)

	env.recorder = history.NewRecorder(store)
	env.handler = NewServer(p, store, env.recorder, opts).Handler()
	return env
}

func testImage(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{G: 180, A: 255})
	}

	var buf bytes.Buffer
	if format == "jpeg" {
		require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	} else {
		require.NoError(t, png.Encode(&buf, img))
	}
	return buf.Bytes()
}

type upload struct {
	data        []byte
	contentType string
	material    string
}

// newUploadRequest 构造 multipart 请求；data 为 nil 时不附带图片
func newUploadRequest(t *testing.T, u upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if u.data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="room.jpg"`)
		h.Set("Content-Type", u.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	if u.material != "" {
		require.NoError(t, mw.WriteField("material", u.material))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/generate-room", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
