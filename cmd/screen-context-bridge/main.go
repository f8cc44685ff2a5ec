package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screen-context-bridge/aggregator"
	"screen-context-bridge/bridge"
	"screen-context-bridge/clipboard"
	"screen-context-bridge/config"
	"screen-context-bridge/frame"
	"screen-context-bridge/llm"
	"screen-context-bridge/logutil"
	"screen-context-bridge/ocr"
	"screen-context-bridge/prompt"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to the JSON configuration file")
	copyInsights := flag.Bool("copy", false, "Copy each analysis insight to the clipboard")
	verbose := flag.Bool("verbose", false, "Echo frame text to the log")
	analyzeEvery := flag.Duration("analyze-every", 0, "Run an LLM analysis at this interval (0 disables periodic analysis)")
	flag.Parse()

	cfg := config.Load(*configPath)
	logutil.Setup(cfg.Logging.EnableFileLogging, cfg.Logging.File, *verbose)

	if err := run(cfg, *copyInsights, *verbose, *analyzeEvery); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
}

func run(cfg *config.Config, copyInsights, verbose bool, analyzeEvery time.Duration) error {
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	client := llm.NewClient(provider, cfg.LLM.MaxRetries, cfg.LLM.RetryDelay())
	analyzer := prompt.NewAnalyzer(client, cfg.LLM, cfg.Analysis)

	processor := frame.NewProcessor(frame.ProcessorOptions{
		Fast:            ocr.NewFastEngine(cfg.OCR.Language, cfg.OCR.FastTimeout()),
		Quality:         ocr.NewQualityEngine(cfg.OCR.Language, cfg.OCR.QualityTimeout()),
		QualityInterval: cfg.Capture.QualityModeInterval,
		MinTextLength:   cfg.OCR.MinTextLength,
		ChangeThreshold: cfg.Buffer.ChangeThreshold,
	})

	b, err := bridge.New(bridge.Options{
		Config:    cfg,
		Processor: processor,
		Analyzer:  analyzer,
	})
	if err != nil {
		return err
	}
	defer b.Close()

	if copyInsights {
		if err := clipboard.Init(); err != nil {
			log.Printf("Clipboard unavailable, --copy disabled: %v", err)
			copyInsights = false
		}
	}

	if verbose {
		b.AddTextCallback(func(f frame.OCRFrame) {
			log.Printf("[%s] %q (confidence %.2f, %v)", f.Region, f.Text, f.Confidence, f.ProcessingTime)
		})
	}
	b.AddContextCallback(func(sc aggregator.ScreenContext) {
		if verbose && sc.CurrentText != "" {
			log.Printf("Context: %d frames, %.1f frames/min",
				sc.SessionStats.TotalFrames, sc.SessionStats.FramesPerMinute)
		}
	})
	b.AddAnalysisCallback(func(r prompt.AnalysisResponse) {
		log.Printf("Analysis (%s, confidence %.2f): %s", r.Type, r.Confidence, r.MainInsight)
		for _, s := range r.Suggestions {
			log.Printf("  suggestion: %s", s)
		}
		if copyInsights {
			if err := clipboard.Write(r.MainInsight); err != nil {
				log.Printf("Clipboard write failed: %v", err)
			}
		}
	})

	if err := b.Start(); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	var ticker *time.Ticker
	var tick <-chan time.Time
	if analyzeEvery > 0 {
		ticker = time.NewTicker(analyzeEvery)
		tick = ticker.C
		defer ticker.Stop()
	}

	log.Printf("Running. Press Ctrl+C to stop.")
	for {
		select {
		case <-tick:
			if !b.Analyze(context.Background()) {
				log.Printf("Analysis skipped: no content or analysis already in flight")
			}
		case sig := <-sigs:
			log.Printf("Received %v, shutting down", sig)
			b.Stop()
			return nil
		}
	}
}
