package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-context-bridge/prompt"
)

func TestSubmitRunsJobAndDeliversResult(t *testing.T) {
	p := New(1)
	defer p.Close()

	done := make(chan prompt.AnalysisResponse, 1)
	ok := p.Submit(context.Background(), func(ctx context.Context) prompt.AnalysisResponse {
		return prompt.AnalysisResponse{Type: prompt.TypePremade, MainInsight: "hello"}
	}, func(resp prompt.AnalysisResponse) {
		done <- resp
	})
	require.True(t, ok)

	select {
	case resp := <-done:
		assert.Equal(t, "hello", resp.MainInsight)
	case <-time.After(time.Second):
		t.Fatal("result callback was not invoked")
	}
}

func TestSubmitDropsWhenBusy(t *testing.T) {
	p := New(1)
	defer p.Close()

	block := make(chan struct{})
	started := make(chan struct{})

	ok := p.Submit(context.Background(), func(ctx context.Context) prompt.AnalysisResponse {
		close(started)
		<-block
		return prompt.AnalysisResponse{}
	}, nil)
	require.True(t, ok)
	<-started

	// Worker busy; first submission takes the queue slot, second is dropped.
	first := p.Submit(context.Background(), func(ctx context.Context) prompt.AnalysisResponse {
		return prompt.AnalysisResponse{}
	}, nil)
	second := p.Submit(context.Background(), func(ctx context.Context) prompt.AnalysisResponse {
		return prompt.AnalysisResponse{}
	}, nil)

	assert.True(t, first)
	assert.False(t, second)
	close(block)
}

func TestCloseDrainsQueuedWork(t *testing.T) {
	p := New(2)

	var ran atomic.Int32
	job := func(ctx context.Context) prompt.AnalysisResponse {
		ran.Add(1)
		return prompt.AnalysisResponse{}
	}
	for i := 0; i < 2; i++ {
		// The 1-slot queue may be momentarily full; retry until accepted.
		for !p.Submit(context.Background(), job, nil) {
			time.Sleep(time.Millisecond)
		}
	}
	p.Close()

	assert.EqualValues(t, 2, ran.Load())
	// Second close is a no-op.
	p.Close()
}
