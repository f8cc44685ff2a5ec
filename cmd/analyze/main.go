// analyze runs a one-shot activity analysis over text captured elsewhere:
// pipe in OCR output, point it at a file, or pass the text as an argument.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screen-context-bridge/config"
	"screen-context-bridge/llm"
	"screen-context-bridge/prompt"
)

const maxInputSize = 10 * 1024 * 1024

type cliOptions struct {
	configPath string
	filePath   string
	jsonOutput bool
	verbose    bool
	offline    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "analyze [text]",
		Short:         "Classify screen text and ask the local LLM about it",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(*opts, args)
			if err != nil {
				return err
			}
			return runAnalysis(*opts, text)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "config.json", "Path to the JSON configuration file")
	cmd.Flags().StringVar(&opts.filePath, "file", "", "Read text from this file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Classify only, without querying the LLM")

	return cmd
}

func readInput(opts cliOptions, args []string) (string, error) {
	if len(args) == 1 && opts.filePath != "" {
		return "", fmt.Errorf("pass the text as an argument or via --file, not both")
	}
	if len(args) == 1 {
		return args[0], nil
	}

	var r io.Reader
	switch opts.filePath {
	case "":
		return "", fmt.Errorf("no input: pass text as an argument or use --file")
	case "-":
		r = os.Stdin
	default:
		f, err := os.Open(opts.filePath)
		if err != nil {
			return "", fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if len(data) > maxInputSize {
		return "", fmt.Errorf("input exceeds %d bytes", maxInputSize)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("input is empty")
	}
	return text, nil
}

func runAnalysis(opts cliOptions, text string) error {
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}

	cfg := config.Load(opts.configPath)

	activity := prompt.Classify(text, nil)
	keywords := prompt.ExtractKeywords(text)
	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Activity: %s, keywords: %v\n", activity, keywords)
	}

	if opts.offline {
		return emitOffline(opts, text, activity, keywords)
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	client := llm.NewClient(provider, cfg.LLM.MaxRetries, cfg.LLM.RetryDelay())
	analyzer := prompt.NewAnalyzer(client, cfg.LLM, cfg.Analysis)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout()+10*time.Second)
	defer cancel()

	resp := analyzer.AnalyzeContent(ctx, text, nil, 0)
	return emit(opts, resp)
}

func emitOffline(opts cliOptions, text string, activity prompt.ActivityType, keywords []string) error {
	if opts.jsonOutput {
		out := map[string]interface{}{
			"activity": string(activity),
			"keywords": keywords,
			"length":   len(text),
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}
	fmt.Printf("Activity: %s\n", activity)
	if len(keywords) > 0 {
		fmt.Printf("Keywords: %s\n", strings.Join(keywords, ", "))
	}
	return nil
}

func emit(opts cliOptions, resp prompt.AnalysisResponse) error {
	if opts.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Printf("[%s] %s\n", resp.Type, resp.MainInsight)
	for _, s := range resp.Suggestions {
		fmt.Printf("  - %s\n", s)
	}
	for _, q := range resp.Questions {
		fmt.Printf("  ? %s\n", q)
	}
	if len(resp.ContextTags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(resp.ContextTags, ", "))
	}
	return nil
}
