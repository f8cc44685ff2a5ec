package aggregator

import (
	"sort"
	"sync"
	"time"

	"screen-context-bridge/frame"
	"screen-context-bridge/screenshot"
)

const recentChangeCount = 5

// SessionStats summarizes the capture session at snapshot time.
type SessionStats struct {
	SessionDuration   time.Duration `json:"session_duration"`
	TotalFrames       uint64        `json:"total_frames"`
	FramesPerMinute   float64       `json:"frames_per_minute"`
	ActiveRegions     int           `json:"active_regions"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}

// ScreenContext is a point-in-time aggregate view over recent frames. It is
// built fresh on every request and never mutated afterwards.
type ScreenContext struct {
	CurrentText   string              `json:"current_text"`
	RecentChanges []string            `json:"recent_changes"`
	TextHistory   []frame.OCRFrame    `json:"text_history"`
	ActiveRegions []screenshot.Region `json:"active_regions"`
	SessionStats  SessionStats        `json:"session_stats"`
}

// Aggregator is a bounded, mutex-guarded ring buffer of significant frames.
// It is the only shared mutable state between the capture and context loops;
// access goes through Push and Snapshot exclusively.
type Aggregator struct {
	mu       sync.Mutex
	frames   []frame.OCRFrame
	capacity int

	regions      []screenshot.Region
	sessionStart time.Time
	totalPushed  uint64
}

// New creates an aggregator holding at most capacity frames. The regions are
// reported in snapshots; totalFrames counting starts at session start.
func New(capacity int, regions []screenshot.Region) *Aggregator {
	if capacity <= 0 {
		capacity = 100
	}
	return &Aggregator{
		frames:       make([]frame.OCRFrame, 0, capacity),
		capacity:     capacity,
		regions:      regions,
		sessionStart: time.Now(),
	}
}

// ResetSession restarts the session clock and frame counting without
// touching the buffered frames' capacity.
func (a *Aggregator) ResetSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frames = a.frames[:0]
	a.totalPushed = 0
	a.sessionStart = time.Now()
}

// Push inserts a frame, evicting the oldest when at capacity.
func (a *Aggregator) Push(f frame.OCRFrame) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.frames) >= a.capacity {
		copy(a.frames, a.frames[1:])
		a.frames = a.frames[:len(a.frames)-1]
	}
	a.frames = append(a.frames, f)
	a.totalPushed++
}

// Len reports how many frames are currently buffered.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.frames)
}

// TotalPushed reports how many frames entered the buffer this session,
// including any that were since evicted.
func (a *Aggregator) TotalPushed() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalPushed
}

// Snapshot builds a ScreenContext from the most recent window frames without
// removing them. Frames are sorted ascending by timestamp (frame ID as
// tie-break) before windowing so "most recent" is stable even if pushes
// raced.
func (a *Aggregator) Snapshot(window int) ScreenContext {
	a.mu.Lock()
	frames := make([]frame.OCRFrame, len(a.frames))
	copy(frames, a.frames)
	totalPushed := a.totalPushed
	sessionStart := a.sessionStart
	regions := a.regions
	a.mu.Unlock()

	sort.Slice(frames, func(i, j int) bool {
		if frames[i].Timestamp.Equal(frames[j].Timestamp) {
			return frames[i].FrameID < frames[j].FrameID
		}
		return frames[i].Timestamp.Before(frames[j].Timestamp)
	})

	if window <= 0 {
		window = 10
	}
	if len(frames) > window {
		frames = frames[len(frames)-window:]
	}

	currentText := ""
	if len(frames) > 0 {
		currentText = frames[len(frames)-1].Text
	}

	changes := frames
	if len(changes) > recentChangeCount {
		changes = changes[len(changes)-recentChangeCount:]
	}
	recentChanges := make([]string, 0, len(changes))
	for _, f := range changes {
		recentChanges = append(recentChanges, f.Text)
	}

	return ScreenContext{
		CurrentText:   currentText,
		RecentChanges: recentChanges,
		TextHistory:   frames,
		ActiveRegions: regions,
		SessionStats:  a.stats(frames, totalPushed, sessionStart, len(regions)),
	}
}

// RecentText returns the texts of up to maxFrames most recent frames,
// oldest first.
func (a *Aggregator) RecentText(maxFrames int) []string {
	if maxFrames <= 0 {
		maxFrames = 10
	}
	ctx := a.Snapshot(maxFrames)
	texts := make([]string, 0, len(ctx.TextHistory))
	for _, f := range ctx.TextHistory {
		texts = append(texts, f.Text)
	}
	return texts
}

func (a *Aggregator) stats(window []frame.OCRFrame, totalPushed uint64, sessionStart time.Time, regionCount int) SessionStats {
	duration := time.Since(sessionStart)

	perMinute := 0.0
	if duration > 0 {
		perMinute = float64(totalPushed) / duration.Minutes()
	}

	var avgProcessing time.Duration
	if len(window) > 0 {
		var total time.Duration
		for _, f := range window {
			total += f.ProcessingTime
		}
		avgProcessing = total / time.Duration(len(window))
	}

	return SessionStats{
		SessionDuration:   duration,
		TotalFrames:       totalPushed,
		FramesPerMinute:   perMinute,
		ActiveRegions:     regionCount,
		AvgProcessingTime: avgProcessing,
	}
}
