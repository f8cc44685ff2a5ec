package bridge

import (
	"context"
	"fmt"
	"image"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"screen-context-bridge/aggregator"
	"screen-context-bridge/config"
	"screen-context-bridge/frame"
	"screen-context-bridge/prompt"
	"screen-context-bridge/screenshot"
	"screen-context-bridge/worker"
)

// State is the bridge lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// stopTimeout bounds how long Stop waits for the loops to acknowledge
// cancellation. In-flight OCR or LLM calls are abandoned past it, not
// killed.
const stopTimeout = 2 * time.Second

// Grabber captures the pixels of a screen region. The production
// implementation wraps the screenshot package; tests inject fakes.
type Grabber interface {
	Grab(region screenshot.Region) (image.Image, error)
}

// GrabberFunc adapts a function to the Grabber interface.
type GrabberFunc func(region screenshot.Region) (image.Image, error)

func (f GrabberFunc) Grab(region screenshot.Region) (image.Image, error) { return f(region) }

// ScreenGrabber is the default Grabber backed by the real screen.
func ScreenGrabber() Grabber {
	return GrabberFunc(func(region screenshot.Region) (image.Image, error) {
		return screenshot.CaptureRegion(region)
	})
}

// TextCallback fires for every significant frame.
type TextCallback func(f frame.OCRFrame)

// ContextCallback fires on every periodic snapshot.
type ContextCallback func(ctx aggregator.ScreenContext)

// AnalysisCallback fires when an LLM analysis completes.
type AnalysisCallback func(resp prompt.AnalysisResponse)

// Bridge owns the capture loop, the context-update loop and the callback
// registry. Every Bridge instance is self-contained: multiple bridges can
// coexist because nothing here is package-level state.
type Bridge struct {
	cfg       *config.Config
	grabber   Grabber
	processor *frame.Processor
	agg       *aggregator.Aggregator
	analyzer  *prompt.Analyzer
	pool      *worker.Pool

	mu                sync.Mutex
	state             State
	cancel            context.CancelFunc
	loopsDone         chan struct{}
	textCallbacks     []TextCallback
	contextCallbacks  []ContextCallback
	analysisCallbacks []AnalysisCallback
}

// Options collects the bridge's collaborators. Grabber defaults to the real
// screen; Pool defaults to a single-worker pool.
type Options struct {
	Config    *config.Config
	Grabber   Grabber
	Processor *frame.Processor
	Analyzer  *prompt.Analyzer
	Pool      *worker.Pool
}

func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Processor == nil {
		return nil, fmt.Errorf("bridge: frame processor is required")
	}
	if opts.Grabber == nil {
		opts.Grabber = ScreenGrabber()
	}
	if opts.Pool == nil {
		opts.Pool = worker.New(1)
	}

	regions := make([]screenshot.Region, 0, len(opts.Config.Capture.Regions))
	for _, r := range opts.Config.Capture.Regions {
		regions = append(regions, screenshot.Region{
			Name: r.Name, X: r.X, Y: r.Y, Width: r.Width, Height: r.Height,
		})
	}

	return &Bridge{
		cfg:       opts.Config,
		grabber:   opts.Grabber,
		processor: opts.Processor,
		agg:       aggregator.New(opts.Config.Buffer.MaxFrames, regions),
		analyzer:  opts.Analyzer,
		pool:      opts.Pool,
	}, nil
}

// AddTextCallback registers fn to receive every significant frame.
func (b *Bridge) AddTextCallback(fn TextCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.textCallbacks = append(b.textCallbacks, fn)
}

// AddContextCallback registers fn to receive every periodic snapshot.
func (b *Bridge) AddContextCallback(fn ContextCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contextCallbacks = append(b.contextCallbacks, fn)
}

// AddAnalysisCallback registers fn to receive completed analyses.
func (b *Bridge) AddAnalysisCallback(fn AnalysisCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analysisCallbacks = append(b.analysisCallbacks, fn)
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start launches the capture and context-update loops. Calling Start on a
// running bridge is a no-op, not an error.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.state != StateStopped {
		b.mu.Unlock()
		return nil
	}
	b.state = StateStarting

	if len(b.cfg.Capture.Regions) == 0 {
		b.state = StateStopped
		b.mu.Unlock()
		return fmt.Errorf("bridge: no capture regions configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.loopsDone = make(chan struct{})
	b.agg.ResetSession()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.captureLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		b.contextLoop(ctx)
	}()
	done := b.loopsDone
	go func() {
		wg.Wait()
		close(done)
	}()

	b.state = StateRunning
	b.mu.Unlock()

	log.Printf("Bridge started: %d regions at %.1f fps", len(b.cfg.Capture.Regions), b.cfg.Capture.FPS)
	return nil
}

// Stop signals both loops to exit and waits up to 2 seconds for them to
// acknowledge. Loops blocked inside an OCR or LLM call past that window
// are abandoned as background goroutines.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.state != StateRunning {
		b.mu.Unlock()
		return
	}
	b.state = StateStopping
	cancel := b.cancel
	done := b.loopsDone
	b.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		log.Printf("Bridge stop timed out after %v; abandoning in-flight work", stopTimeout)
	}

	b.mu.Lock()
	b.state = StateStopped
	b.mu.Unlock()
	log.Printf("Bridge stopped")
}

// captureLoop grabs every configured region at the target rate. A cycle
// that overruns the interval runs long; there is no frame-dropping beyond
// the buffer's own eviction.
func (b *Bridge) captureLoop(ctx context.Context) {
	interval := b.cfg.Capture.Interval()

	for {
		cycleStart := time.Now()

		for _, r := range b.cfg.Capture.Regions {
			if ctx.Err() != nil {
				return
			}
			b.captureOne(ctx, screenshot.Region{
				Name: r.Name, X: r.X, Y: r.Y, Width: r.Width, Height: r.Height,
			})
		}

		remaining := interval - time.Since(cycleStart)
		if remaining > 0 {
			select {
			case <-time.After(remaining):
			case <-ctx.Done():
				return
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}

func (b *Bridge) captureOne(ctx context.Context, region screenshot.Region) {
	img, err := b.grabber.Grab(region)
	if err != nil {
		log.Printf("Capture error for region %s: %v", region, err)
		return
	}

	f, significant, err := b.processor.Process(ctx, img, region)
	if err != nil {
		log.Printf("Frame processing error for region %s: %v", region, err)
		return
	}
	if f == nil || !significant {
		return
	}

	b.agg.Push(*f)
	b.dispatchText(*f)
}

// contextLoop broadcasts a fresh snapshot every update interval.
func (b *Bridge) contextLoop(ctx context.Context) {
	interval := b.cfg.LLM.UpdateInterval()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.dispatchContext(b.agg.Snapshot(b.cfg.Buffer.ContextWindow))
		}
	}
}

func (b *Bridge) dispatchText(f frame.OCRFrame) {
	b.mu.Lock()
	callbacks := make([]TextCallback, len(b.textCallbacks))
	copy(callbacks, b.textCallbacks)
	b.mu.Unlock()

	for i, cb := range callbacks {
		runCallback(fmt.Sprintf("text callback %d", i), func() { cb(f) })
	}
}

func (b *Bridge) dispatchContext(ctx aggregator.ScreenContext) {
	b.mu.Lock()
	callbacks := make([]ContextCallback, len(b.contextCallbacks))
	copy(callbacks, b.contextCallbacks)
	b.mu.Unlock()

	for i, cb := range callbacks {
		runCallback(fmt.Sprintf("context callback %d", i), func() { cb(ctx) })
	}
}

func (b *Bridge) dispatchAnalysis(resp prompt.AnalysisResponse) {
	b.mu.Lock()
	callbacks := make([]AnalysisCallback, len(b.analysisCallbacks))
	copy(callbacks, b.analysisCallbacks)
	b.mu.Unlock()

	for i, cb := range callbacks {
		runCallback(fmt.Sprintf("analysis callback %d", i), func() { cb(resp) })
	}
}

// runCallback isolates one subscriber: a panicking callback is logged and
// never takes down a loop or blocks the other subscribers.
func runCallback(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered %s panic: %v\n%s", name, r, debug.Stack())
		}
	}()
	fn()
}

// GetCurrentContext builds a snapshot synchronously.
func (b *Bridge) GetCurrentContext() aggregator.ScreenContext {
	return b.agg.Snapshot(b.cfg.Buffer.ContextWindow)
}

// GetRecentText returns the texts of up to maxFrames recent frames,
// oldest first.
func (b *Bridge) GetRecentText(maxFrames int) []string {
	return b.agg.RecentText(maxFrames)
}

// Analyze submits an LLM analysis of the current context to the worker
// pool and reports the result through the analysis callbacks. Returns
// false when no analyzer is configured or one is already in flight.
func (b *Bridge) Analyze(ctx context.Context) bool {
	if b.analyzer == nil {
		return false
	}

	snapshot := b.GetCurrentContext()
	if snapshot.CurrentText == "" {
		return false
	}

	history := snapshot.RecentChanges
	duration := snapshot.SessionStats.SessionDuration

	return b.pool.Submit(ctx, func(ctx context.Context) prompt.AnalysisResponse {
		return b.analyzer.AnalyzeContent(ctx, snapshot.CurrentText, history, duration)
	}, b.dispatchAnalysis)
}

// Analyzer exposes the analyzer for summary queries; nil when analysis is
// disabled.
func (b *Bridge) Analyzer() *prompt.Analyzer { return b.analyzer }

// Close releases the worker pool. Call after the final Stop.
func (b *Bridge) Close() {
	b.pool.Close()
}
