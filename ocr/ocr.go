package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"time"

	"github.com/otiai10/gosseract"

	"screen-context-bridge/screenshot"
)

// ErrTimeout is returned when a recognition call exceeds its deadline. The
// underlying call keeps running in the background and is abandoned, not
// killed.
var ErrTimeout = errors.New("ocr: recognition timed out")

// Engine extracts text from an image. Implementations carry their own
// timeout and a heuristic confidence score for the frames they produce.
type Engine interface {
	Name() string
	Recognize(img image.Image) (string, error)
	Confidence() float64
	Timeout() time.Duration
}

// TesseractEngine runs OCR through the local tesseract installation. The
// fast variant trades accuracy for latency with sparse page segmentation;
// the quality variant uses full automatic segmentation.
type TesseractEngine struct {
	name       string
	language   string
	pageSeg    gosseract.PageSegMode
	confidence float64
	timeout    time.Duration
}

// NewFastEngine returns the low-latency engine used for most frames.
func NewFastEngine(language string, timeout time.Duration) *TesseractEngine {
	return &TesseractEngine{
		name:       "tesseract-fast",
		language:   language,
		pageSeg:    gosseract.PSM_SPARSE_TEXT,
		confidence: 0.6,
		timeout:    timeout,
	}
}

// NewQualityEngine returns the high-latency engine substituted in every Mth
// frame for better accuracy.
func NewQualityEngine(language string, timeout time.Duration) *TesseractEngine {
	return &TesseractEngine{
		name:       "tesseract-quality",
		language:   language,
		pageSeg:    gosseract.PSM_AUTO,
		confidence: 0.8,
		timeout:    timeout,
	}
}

func (e *TesseractEngine) Name() string          { return e.name }
func (e *TesseractEngine) Confidence() float64   { return e.confidence }
func (e *TesseractEngine) Timeout() time.Duration { return e.timeout }

func (e *TesseractEngine) Recognize(img image.Image) (string, error) {
	data, err := screenshot.EncodePNG(img)
	if err != nil {
		return "", err
	}

	// gosseract clients are not safe for concurrent use; one per call.
	client := gosseract.NewClient()
	defer client.Close()

	if e.language != "" {
		if err := client.SetLanguage(e.language); err != nil {
			return "", fmt.Errorf("ocr: set language: %w", err)
		}
	}
	if err := client.SetPageSegMode(e.pageSeg); err != nil {
		return "", fmt.Errorf("ocr: set page seg mode: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("ocr: set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// RecognizeWithTimeout bounds a recognition call by the engine's timeout.
// On deadline it returns ErrTimeout; callers treat that as "no text this
// frame" rather than a pipeline failure.
func RecognizeWithTimeout(ctx context.Context, engine Engine, img image.Image) (string, error) {
	if engine.Timeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, engine.Timeout())
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		text, err := engine.Recognize(img)
		resCh <- result{text: text, err: err}
	}()

	select {
	case r := <-resCh:
		return r.text, r.err
	case <-ctx.Done():
		log.Printf("OCR engine %s exceeded deadline, abandoning call", engine.Name())
		return "", ErrTimeout
	}
}
