package pipeline

import (
	"context"
	"sync"
)

// callLog 记录各阶段调用顺序
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type mockDescriber struct {
	log         *callLog
	text        string
	err         error
	instruction string
	mimeType    string
}

func (m *mockDescriber) Describe(ctx context.Context, image []byte, mimeType string, instruction string) (string, error) {
	m.log.add("describe")
	m.instruction = instruction
	m.mimeType = mimeType
	return m.text, m.err
}

type mockSegmenter struct {
	log  *callLog
	mask []byte
	err  error
}

func (m *mockSegmenter) Segment(ctx context.Context, image []byte) ([]byte, error) {
	m.log.add("segment")
	return m.mask, m.err
}

type mockInpainter struct {
	log   *callLog
	image []byte
	err   error
	req   InpaintRequest
}

func (m *mockInpainter) Inpaint(ctx context.Context, req InpaintRequest) ([]byte, error) {
	m.log.add("inpaint")
	m.req = req
	return m.image, m.err
}

type fixture struct {
	log       *callLog
	describer *mockDescriber
	segmenter *mockSegmenter
	inpainter *mockInpainter
}

func newFixture() *fixture {
	log := &callLog{}
	return &fixture{
		log:       log,
		describer: &mockDescriber{log: log, text: "A bright living room with a Marble floor and large windows."},
		segmenter: &mockSegmenter{log: log, mask: []byte("mask-bytes")},
		inpainter: &mockInpainter{log: log, image: []byte("png-bytes")},
	}
}

func (f *fixture) pipeline(opts ...Option) *Pipeline {
	p, err := New(f.describer, f.segmenter, f.inpainter, opts...)
	if err != nil {
		panic(err)
	}
	return p
}
