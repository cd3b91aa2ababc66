package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screensnap/appstate"
	"screensnap/capture"
	"screensnap/config"
	"screensnap/dispatch"
	"screensnap/gui"
	"screensnap/logutil"
	"screensnap/ollama"
)

type cliOptions struct {
	ollamaURL string
	model     string
	verbose   bool
}

// vision is the subset of the ollama client the CLI paths use. Tests swap in
// a fake.
type vision interface {
	Health(ctx context.Context) (int, error)
	ListModels(ctx context.Context) ([]ollama.Model, error)
	Pull(ctx context.Context, name string) error
	Describe(ctx context.Context, model, prompt string, imagePNG []byte) (string, error)
}

// toolkit bundles the process dependencies so commands stay testable.
type toolkit struct {
	capturer dispatch.Capturer
	analyzer vision
	stdout   io.Writer
	stderr   io.Writer
	stdin    io.Reader
	deadline time.Duration
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(os.Args)
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screensnap"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, nil)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

// newRootCmd builds the command tree. A nil toolkit means the real one is
// assembled from config at execution time.
func newRootCmd(opts *cliOptions, tk *toolkit) *cobra.Command {
	root := &cobra.Command{
		Use:           "screensnap",
		Short:         "Capture screenshots and describe them with a local vision model",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI(*opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.ollamaURL, "ollama-url", "", "Ollama server URL (default from OLLAMA_HOST or "+config.DefaultOllamaURL+")")
	root.PersistentFlags().StringVarP(&opts.model, "model", "m", "", "Vision model name (default from MODEL or "+config.DefaultModel+")")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging to stderr")

	captureOpts := &captureOptions{}
	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the screen or a window and print the model's description",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, kit, err := buildToolkit(*opts, tk)
			if err != nil {
				return err
			}
			return runCapture(cfg, kit, *captureOpts)
		},
	}
	captureCmd.Flags().StringVarP(&captureOpts.window, "window", "w", "", "Capture the window whose title contains this text")
	captureCmd.Flags().StringVarP(&captureOpts.savePath, "save", "s", "", "Save the PNG to this path")
	captureCmd.Flags().StringVarP(&captureOpts.prompt, "prompt", "p", "", "Prompt sent with the image")
	captureCmd.Flags().BoolVar(&captureOpts.noAI, "no-ai", false, "Capture only, skip the model round trip")

	listWindowsCmd := &cobra.Command{
		Use:   "list-windows",
		Short: "List open window titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, kit, err := buildToolkit(*opts, tk)
			if err != nil {
				return err
			}
			return runListWindows(kit)
		},
	}

	listModelsCmd := &cobra.Command{
		Use:   "list-models",
		Short: "List models available on the Ollama server",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, kit, err := buildToolkit(*opts, tk)
			if err != nil {
				return err
			}
			return runListModels(kit)
		},
	}

	pullCmd := &cobra.Command{
		Use:   "pull-model <name>",
		Short: "Ask the Ollama server to download a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, kit, err := buildToolkit(*opts, tk)
			if err != nil {
				return err
			}
			return runPullModel(kit, args[0])
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Probe the Ollama server and report whether the model is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, kit, err := buildToolkit(*opts, tk)
			if err != nil {
				return err
			}
			return runCheck(cfg, kit)
		},
	}

	interactiveCmd := &cobra.Command{
		Use:   "interactive",
		Short: "Menu-driven capture session on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, kit, err := buildToolkit(*opts, tk)
			if err != nil {
				return err
			}
			return runInteractive(cfg, kit)
		},
	}

	guiCmd := &cobra.Command{
		Use:   "gui",
		Short: "Run the sliding sidebar interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI(*opts)
		},
	}

	root.AddCommand(captureCmd, listWindowsCmd, listModelsCmd, pullCmd, checkCmd, interactiveCmd, guiCmd)
	return root
}

// buildToolkit loads config and assembles the real dependencies unless a test
// injected its own.
func buildToolkit(opts cliOptions, tk *toolkit) (*config.Config, *toolkit, error) {
	if opts.verbose {
		logutil.SetupStderr()
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{
		OllamaURLOverride: opts.ollamaURL,
		ModelOverride:     opts.model,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if tk != nil {
		return cfg, tk, nil
	}
	return cfg, &toolkit{
		capturer: capture.NewManager(),
		analyzer: ollama.New(cfg.OllamaURL),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		stdin:    os.Stdin,
		deadline: time.Duration(cfg.AnalyzeDeadlineSec) * time.Second,
	}, nil
}

type captureOptions struct {
	window   string
	savePath string
	prompt   string
	noAI     bool
}

func runCapture(cfg *config.Config, kit *toolkit, opts captureOptions) error {
	target := capture.FullScreen()
	if opts.window != "" {
		target = capture.NamedWindow(resolveWindow(kit.capturer, opts.window))
	}

	img, err := kit.capturer.Shoot(target)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	fmt.Fprintf(kit.stderr, "Captured %dx%d pixels\n", img.Width, img.Height)

	if opts.savePath != "" {
		if err := img.Save(opts.savePath); err != nil {
			return fmt.Errorf("failed to save image: %w", err)
		}
		fmt.Fprintf(kit.stderr, "Saved to %s\n", opts.savePath)
	}

	if opts.noAI {
		return nil
	}

	png, err := img.PNG()
	if err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), kit.deadline)
	defer cancel()

	text, err := kit.analyzer.Describe(ctx, cfg.Model, opts.prompt, png)
	if err != nil {
		if hint := ollama.HintFor(err); hint != "" {
			fmt.Fprintln(kit.stderr, hint)
		}
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Fprintln(kit.stdout, "=== AI Analysis ===")
	fmt.Fprintln(kit.stdout, text)
	fmt.Fprintln(kit.stdout, "===================")
	return nil
}

func runListWindows(kit *toolkit) error {
	titles, err := kit.capturer.WindowTitles()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}
	if len(titles) == 0 {
		fmt.Fprintln(kit.stdout, "No windows found.")
		return nil
	}
	for i, title := range titles {
		fmt.Fprintf(kit.stdout, "%3d  %s\n", i+1, title)
	}
	return nil
}

func runListModels(kit *toolkit) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models, err := kit.analyzer.ListModels(ctx)
	if err != nil {
		if hint := ollama.HintFor(err); hint != "" {
			fmt.Fprintln(kit.stderr, hint)
		}
		return fmt.Errorf("failed to list models: %w", err)
	}
	if len(models) == 0 {
		fmt.Fprintln(kit.stdout, "No models pulled. Try: ollama pull "+config.DefaultModel)
		return nil
	}
	for _, m := range models {
		fmt.Fprintf(kit.stdout, "%-30s %s\n", m.Name, formatSize(m.Size))
	}
	fmt.Fprintln(kit.stdout, "\nSuggested vision models: llava:latest, llava:13b, llava:7b")
	return nil
}

func runPullModel(kit *toolkit, name string) error {
	fmt.Fprintf(kit.stderr, "Pulling %s (this can take a while)...\n", name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := kit.analyzer.Pull(ctx, name); err != nil {
		if hint := ollama.HintFor(err); hint != "" {
			fmt.Fprintln(kit.stderr, hint)
		}
		return fmt.Errorf("pull failed: %w", err)
	}
	fmt.Fprintf(kit.stdout, "Model %s is ready.\n", name)
	return nil
}

func runCheck(cfg *config.Config, kit *toolkit) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := kit.analyzer.Health(ctx)
	if err != nil {
		if hint := ollama.HintFor(err); hint != "" {
			fmt.Fprintln(kit.stderr, hint)
		}
		return fmt.Errorf("server check failed: %w", err)
	}
	fmt.Fprintf(kit.stdout, "Ollama server is up (%d models available).\n", count)

	models, err := kit.analyzer.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	for _, m := range models {
		if m.Name == cfg.Model {
			fmt.Fprintf(kit.stdout, "Model %s is pulled and ready.\n", cfg.Model)
			return nil
		}
	}
	fmt.Fprintf(kit.stdout, "Model %s is NOT pulled. To fix: ollama pull %s\n", cfg.Model, cfg.Model)
	return nil
}

func runGUI(opts cliOptions) error {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		OllamaURLOverride: opts.ollamaURL,
		ModelOverride:     opts.model,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.verbose {
		logutil.SetupStderr()
	} else {
		logutil.Setup(cfg.EnableFileLogging)
	}

	d := dispatch.New(appstate.NewStore(), capture.NewManager(), ollama.New(cfg.OllamaURL),
		cfg.Model, time.Duration(cfg.AnalyzeDeadlineSec)*time.Second)
	return gui.Run(cfg, d)
}

const interactiveMenu = `
ScreenSnap interactive mode
  1) Capture full screen
  2) Capture a window
  3) List models
  q) Quit
> `

// runInteractive drives captures from a stdin menu. Windows can be picked by
// number or by (part of) their title.
func runInteractive(cfg *config.Config, kit *toolkit) error {
	scanner := bufio.NewScanner(kit.stdin)
	for {
		fmt.Fprint(kit.stdout, interactiveMenu)
		if !scanner.Scan() {
			return scanner.Err()
		}
		choice := strings.TrimSpace(scanner.Text())

		switch choice {
		case "1":
			if err := interactiveShot(cfg, kit, scanner, capture.FullScreen()); err != nil {
				fmt.Fprintf(kit.stderr, "Error: %v\n", err)
			}
		case "2":
			if err := interactiveWindowShot(cfg, kit, scanner); err != nil {
				fmt.Fprintf(kit.stderr, "Error: %v\n", err)
			}
		case "3":
			if err := runListModels(kit); err != nil {
				fmt.Fprintf(kit.stderr, "Error: %v\n", err)
			}
		case "q", "quit", "exit":
			return nil
		case "":
		default:
			fmt.Fprintf(kit.stdout, "Unknown choice %q\n", choice)
		}
	}
}

func interactiveWindowShot(cfg *config.Config, kit *toolkit, scanner *bufio.Scanner) error {
	titles, err := kit.capturer.WindowTitles()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}
	if len(titles) == 0 {
		return fmt.Errorf("no windows found")
	}
	for i, title := range titles {
		fmt.Fprintf(kit.stdout, "%3d  %s\n", i+1, title)
	}
	fmt.Fprint(kit.stdout, "Window number or title: ")
	if !scanner.Scan() {
		return scanner.Err()
	}
	pick := strings.TrimSpace(scanner.Text())
	if pick == "" {
		return nil
	}

	title := pick
	if n, err := strconv.Atoi(pick); err == nil {
		if n < 1 || n > len(titles) {
			return fmt.Errorf("window number %d out of range", n)
		}
		title = titles[n-1]
	} else {
		title = matchTitle(titles, pick)
	}
	return interactiveShot(cfg, kit, scanner, capture.NamedWindow(title))
}

func interactiveShot(cfg *config.Config, kit *toolkit, scanner *bufio.Scanner, target capture.Target) error {
	img, err := kit.capturer.Shoot(target)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	fmt.Fprintf(kit.stdout, "Captured %dx%d pixels.\n", img.Width, img.Height)

	fmt.Fprint(kit.stdout, "Save to file (blank to skip): ")
	if !scanner.Scan() {
		return scanner.Err()
	}
	if path := strings.TrimSpace(scanner.Text()); path != "" {
		if err := img.Save(path); err != nil {
			return fmt.Errorf("failed to save image: %w", err)
		}
		fmt.Fprintf(kit.stdout, "Saved to %s\n", path)
	}

	fmt.Fprint(kit.stdout, "Analyze with "+cfg.Model+"? [Y/n] ")
	if !scanner.Scan() {
		return scanner.Err()
	}
	if answer := strings.ToLower(strings.TrimSpace(scanner.Text())); answer == "n" || answer == "no" {
		return nil
	}

	png, err := img.PNG()
	if err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), kit.deadline)
	defer cancel()

	fmt.Fprintln(kit.stdout, "Analyzing...")
	text, err := kit.analyzer.Describe(ctx, cfg.Model, "", png)
	if err != nil {
		if hint := ollama.HintFor(err); hint != "" {
			fmt.Fprintln(kit.stderr, hint)
		}
		return fmt.Errorf("analysis failed: %w", err)
	}
	fmt.Fprintln(kit.stdout, text)
	return nil
}

// resolveWindow matches a query against open titles, case-insensitive
// substring first, falling back to the literal query.
func resolveWindow(capturer dispatch.Capturer, query string) string {
	titles, err := capturer.WindowTitles()
	if err != nil {
		return query
	}
	return matchTitle(titles, query)
}

func matchTitle(titles []string, query string) string {
	lower := strings.ToLower(query)
	for _, title := range titles {
		if strings.Contains(strings.ToLower(title), lower) {
			return title
		}
	}
	return query
}

func formatSize(bytes int64) string {
	const gb = 1 << 30
	const mb = 1 << 20
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.0f MB", float64(bytes)/mb)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
