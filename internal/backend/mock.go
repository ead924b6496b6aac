package backend

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
)

// MockText is a deterministic text backend used by the mock backend tag and
// by tests. It never touches the network.
type MockText struct {
	mu    sync.Mutex
	usage Usage
	calls int
}

// NewMockText constructs a mock text backend.
func NewMockText() *MockText {
	return &MockText{}
}

func (m *MockText) Name() string { return "mock-llm" }

func (m *MockText) Generate(_ context.Context, prompt, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	var out string
	if strings.Contains(strings.ToLower(prompt), "outline") {
		out = strings.Join([]string{
			"1. Introduction",
			"2. Foundations",
			"3. Deep Dive",
			"4. Case Studies",
			"5. Conclusion",
		}, "\n")
	} else {
		out = strings.Join([]string{
			"### Overview",
			"This section introduces the subject in plain terms.",
			"### Detail",
			"A longer treatment follows, with worked examples and context.",
			"### Summary",
			"The key points are restated for review.",
		}, "\n\n")
	}

	m.usage.Add(Usage{
		InputTokens:  int64(len(prompt)) / 4,
		OutputTokens: int64(len(out)) / 4,
	})
	return out, nil
}

func (m *MockText) Usage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// Calls reports how many generation requests the mock has served.
func (m *MockText) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockImage is a deterministic image backend producing a small solid PNG.
type MockImage struct {
	mu    sync.Mutex
	usage Usage
	calls int
}

// NewMockImage constructs a mock image backend.
func NewMockImage() *MockImage {
	return &MockImage{}
}

func (m *MockImage) Name() string { return "mock-image" }

func (m *MockImage) Generate(_ context.Context, prompt string, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mock image: invalid dimensions %dx%d", width, height)
	}
	// Keep the placeholder small regardless of requested dimensions.
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	shade := uint8(len(prompt) % 256)
	fill := color.NRGBA{R: shade, G: 0x66, B: 0x99, A: 0xff}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("mock image: encode png: %w", err)
	}

	m.mu.Lock()
	m.calls++
	m.usage.Add(Usage{Images: 1})
	m.mu.Unlock()
	return buf.Bytes(), nil
}

func (m *MockImage) Usage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// Calls reports how many generation requests the mock has served.
func (m *MockImage) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
