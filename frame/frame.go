package frame

import (
	"context"
	"errors"
	"image"
	"log"
	"strings"
	"sync"
	"time"

	"screen-context-bridge/ocr"
	"screen-context-bridge/screenshot"
)

// OCRFrame is one capture+recognition result. Immutable once built.
type OCRFrame struct {
	Timestamp      time.Time         `json:"timestamp"`
	Text           string            `json:"text"`
	Confidence     float64           `json:"confidence"`
	Region         screenshot.Region `json:"region"`
	ProcessingTime time.Duration     `json:"processing_time"`
	FrameID        uint64            `json:"frame_id"`
}

// Similarity computes character-set Jaccard similarity between two strings,
// case-folded. It is symmetric and returns 0 when either string is empty.
//
// Known weakness, kept on purpose: the measure ignores character order and
// repeats, so two different strings over the same alphabet score as
// identical. It is a cheap noise filter, not a diff.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	setA := runeSet(strings.ToLower(a))
	setB := runeSet(strings.ToLower(b))

	intersection := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}

// Processor turns raw images into OCRFrames and filters out frames whose
// text has not changed enough to matter.
type Processor struct {
	fast    ocr.Engine
	quality ocr.Engine

	qualityInterval int
	minTextLength   int
	changeThreshold float64

	mu       sync.Mutex
	counter  uint64
	lastText string
}

type ProcessorOptions struct {
	Fast            ocr.Engine
	Quality         ocr.Engine
	QualityInterval int     // quality engine every Nth frame
	MinTextLength   int     // frames with shorter text are rejected
	ChangeThreshold float64 // significant when similarity < 1 - threshold
}

func NewProcessor(opts ProcessorOptions) *Processor {
	if opts.QualityInterval <= 0 {
		opts.QualityInterval = 10
	}
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = 3
	}
	if opts.ChangeThreshold <= 0 {
		opts.ChangeThreshold = 0.1
	}
	return &Processor{
		fast:            opts.Fast,
		quality:         opts.Quality,
		qualityInterval: opts.QualityInterval,
		minTextLength:   opts.MinTextLength,
		changeThreshold: opts.ChangeThreshold,
	}
}

// Process runs OCR on img and returns a frame when the extracted text is
// long enough, plus whether the frame is significant (changed enough from
// the last accepted text to enter the buffer). The last-accepted text only
// advances when a frame is significant.
//
// OCR timeouts are not errors: the frame simply carries no text and is
// dropped. Only unexpected engine failures are returned.
func (p *Processor) Process(ctx context.Context, img image.Image, region screenshot.Region) (*OCRFrame, bool, error) {
	p.mu.Lock()
	frameID := p.counter
	p.counter++
	engine := p.fast
	if p.quality != nil && frameID%uint64(p.qualityInterval) == 0 {
		engine = p.quality
	}
	p.mu.Unlock()

	start := time.Now()
	text, err := ocr.RecognizeWithTimeout(ctx, engine, img)
	if err != nil {
		if errors.Is(err, ocr.ErrTimeout) {
			// No text this frame; the pipeline keeps going.
			return nil, false, nil
		}
		return nil, false, err
	}

	text = strings.TrimSpace(text)
	if len(text) < p.minTextLength {
		return nil, false, nil
	}

	f := &OCRFrame{
		Timestamp:      time.Now(),
		Text:           text,
		Confidence:     engine.Confidence(),
		Region:         region,
		ProcessingTime: time.Since(start),
		FrameID:        frameID,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	similarity := Similarity(f.Text, p.lastText)
	if similarity >= 1.0-p.changeThreshold {
		log.Printf("Frame %d not significant (similarity %.2f)", f.FrameID, similarity)
		return f, false, nil
	}
	p.lastText = f.Text
	return f, true, nil
}

// LastText returns the most recently accepted text.
func (p *Processor) LastText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastText
}

// FrameCount returns how many frames have been processed this session.
func (p *Processor) FrameCount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counter
}
