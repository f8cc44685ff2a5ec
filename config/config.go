package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// EnvFileVar points at an alternate .env file when the executable
	// directory does not contain one.
	EnvFileVar = "SCREEN_CONTEXT_ENV"

	DefaultConfigName = ".screen_context_bridge.json"
)

// Region is one capture rectangle in virtual-screen coordinates.
type Region struct {
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type CaptureConfig struct {
	Regions             []Region `json:"regions"`
	FPS                 float64  `json:"fps"`
	QualityModeInterval int      `json:"quality_mode_interval"`
}

type OCRConfig struct {
	FastTimeoutSec    float64 `json:"fast_timeout_sec"`
	QualityTimeoutSec float64 `json:"quality_timeout_sec"`
	MinTextLength     int     `json:"min_text_length"`
	Language          string  `json:"language"`
}

type BufferConfig struct {
	MaxFrames       int     `json:"max_frames"`
	ContextWindow   int     `json:"context_window"`
	ChangeThreshold float64 `json:"change_threshold"`
}

type LLMConfig struct {
	Provider          string  `json:"provider"`
	BaseURL           string  `json:"base_url"`
	Model             string  `json:"model"`
	APIKey            string  `json:"-"`
	TimeoutSec        float64 `json:"timeout_sec"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int     `json:"max_tokens"`
	MaxRetries        int     `json:"max_retries"`
	RetryDelaySec     float64 `json:"retry_delay_sec"`
	UpdateIntervalSec float64 `json:"update_interval_sec"`
	MaxContextLength  int     `json:"max_context_length"`
}

type AnalysisConfig struct {
	MinConfidenceThreshold float64 `json:"min_confidence_threshold"`
	MaxSuggestions         int     `json:"max_suggestions"`
	MaxQuestions           int     `json:"max_questions"`
}

type LoggingConfig struct {
	EnableFileLogging bool   `json:"enable_file_logging"`
	File              string `json:"file"`
}

type Config struct {
	Capture  CaptureConfig  `json:"capture"`
	OCR      OCRConfig      `json:"ocr"`
	Buffer   BufferConfig   `json:"buffer"`
	LLM      LLMConfig      `json:"llm"`
	Analysis AnalysisConfig `json:"analysis"`
	Logging  LoggingConfig  `json:"logging"`

	// raw holds the merged document, including keys this version does not
	// know about, so Save round-trips them.
	raw map[string]interface{}
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Regions: []Region{
				{Name: "main", X: 100, Y: 100, Width: 800, Height: 600},
			},
			FPS:                 5,
			QualityModeInterval: 10,
		},
		OCR: OCRConfig{
			FastTimeoutSec:    2.0,
			QualityTimeoutSec: 8.0,
			MinTextLength:     3,
			Language:          "eng",
		},
		Buffer: BufferConfig{
			MaxFrames:       100,
			ContextWindow:   10,
			ChangeThreshold: 0.1,
		},
		LLM: LLMConfig{
			Provider:          "ollama",
			BaseURL:           "http://localhost:11434",
			Model:             "llama3.2:3b",
			TimeoutSec:        60,
			Temperature:       0.3,
			MaxTokens:         500,
			MaxRetries:        3,
			RetryDelaySec:     2,
			UpdateIntervalSec: 1.0,
			MaxContextLength:  5000,
		},
		Analysis: AnalysisConfig{
			MinConfidenceThreshold: 0.6,
			MaxSuggestions:         3,
			MaxQuestions:           2,
		},
		Logging: LoggingConfig{
			EnableFileLogging: false,
			File:              "screen_context_bridge.log",
		},
	}
}

// Load reads the JSON config at path, merges it over the defaults and applies
// environment overrides. A missing file or malformed JSON is not fatal: the
// defaults are returned and the problem is logged.
func Load(path string) *Config {
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, DefaultConfigName)
		}
	}

	defaults := Default()
	merged := toMap(defaults)

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var loaded map[string]interface{}
			if err := json.Unmarshal(data, &loaded); err != nil {
				log.Printf("config: malformed JSON in %s: %v, using defaults", path, err)
			} else {
				mergeMaps(merged, loaded)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("config: cannot read %s: %v, using defaults", path, err)
		}
	}

	cfg := decodeMap(merged, defaults)
	cfg.raw = merged
	applyEnvOverrides(cfg)
	return cfg
}

// Save writes the merged document back to path, preserving unknown keys.
func (c *Config) Save(path string) error {
	doc := c.raw
	if doc == nil {
		doc = toMap(c)
	} else {
		// Refresh known sections so in-memory edits survive the round trip.
		mergeMaps(doc, toMap(c))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *OCRConfig) FastTimeout() time.Duration {
	return secondsToDuration(c.FastTimeoutSec)
}

func (c *OCRConfig) QualityTimeout() time.Duration {
	return secondsToDuration(c.QualityTimeoutSec)
}

func (c *LLMConfig) Timeout() time.Duration {
	return secondsToDuration(c.TimeoutSec)
}

func (c *LLMConfig) RetryDelay() time.Duration {
	return secondsToDuration(c.RetryDelaySec)
}

func (c *LLMConfig) UpdateInterval() time.Duration {
	return secondsToDuration(c.UpdateIntervalSec)
}

func (c *CaptureConfig) Interval() time.Duration {
	fps := c.FPS
	if fps <= 0 {
		fps = 1
	}
	return time.Duration(float64(time.Second) / fps)
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// applyEnvOverrides loads a .env file (from the executable directory, or the
// path in SCREEN_CONTEXT_ENV) and lets a few environment variables win over
// the file-based config. These are deployment knobs, not user settings.
func applyEnvOverrides(cfg *Config) {
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("ENABLE_FILE_LOGGING"); v != "" {
		cfg.Logging.EnableFileLogging = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LLM.MaxRetries = n
		}
	}
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

// mergeMaps overlays loaded onto dst recursively: nested objects merge key by
// key, everything else replaces. Keys unknown to dst are kept.
func mergeMaps(dst, loaded map[string]interface{}) {
	for key, value := range loaded {
		if existing, ok := dst[key]; ok {
			dstMap, dstOK := existing.(map[string]interface{})
			srcMap, srcOK := value.(map[string]interface{})
			if dstOK && srcOK {
				mergeMaps(dstMap, srcMap)
				continue
			}
		}
		dst[key] = value
	}
}

func toMap(cfg *Config) map[string]interface{} {
	data, err := json.Marshal(cfg)
	if err != nil {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

func decodeMap(m map[string]interface{}, fallback *Config) *Config {
	data, err := json.Marshal(m)
	if err != nil {
		return fallback
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fallback
	}
	return cfg
}
