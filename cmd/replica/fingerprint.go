package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/replica/internal/artifact"
	"github.com/ShayCichocki/replica/internal/capture"
	"github.com/ShayCichocki/replica/internal/config"
	"github.com/ShayCichocki/replica/internal/detect"
	"github.com/ShayCichocki/replica/internal/normalize"
	"github.com/ShayCichocki/replica/internal/tokens"
	"github.com/ShayCichocki/replica/pkg/models"
)

var (
	fingerprintOut      string
	fingerprintStatic   bool
	fingerprintViewport string
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <url>",
	Short: "Capture a page and print its components and design tokens",
	Long: `Fingerprint captures a page, normalizes it and runs component detection
and token extraction without generating anything. With --out the
fingerprint, components and tokens are written as JSON (and tokens.yaml)
into the given directory.

Examples:
  replica fingerprint https://example.com
  replica fingerprint https://example.com --static --out ./baseline`,
	Args: cobra.ExactArgs(1),
	RunE: runFingerprint,
}

func init() {
	fingerprintCmd.Flags().StringVar(&fingerprintOut, "out", "", "Directory to write fingerprint, components and tokens into")
	fingerprintCmd.Flags().BoolVar(&fingerprintStatic, "static", false, "Capture with the static HTML capturer instead of a browser")
	fingerprintCmd.Flags().StringVar(&fingerprintViewport, "viewport", "", "Viewport: desktop, tablet or mobile")
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	targetURL, err := validateTargetURL(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("static") {
		cfg.Browser.Static = fingerprintStatic
	}
	if cmd.Flags().Changed("viewport") {
		cfg.Browser.Viewport = fingerprintViewport
	}
	vp, err := resolveViewport(cfg.Browser)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeouts.Capture)
	defer cancel()

	var raw *models.Fingerprint
	if cfg.Browser.Static {
		raw, err = capture.NewHTMLCapturer(&http.Client{Timeout: cfg.Timeouts.Capture}).Capture(ctx, targetURL, vp)
	} else {
		browser := capture.NewBrowserCapturer(capture.BrowserConfig{
			RemoteURL:  cfg.Browser.RemoteURL,
			Bin:        cfg.Browser.Bin,
			Headless:   cfg.Browser.Headless,
			Stealth:    cfg.Browser.Stealth,
			SettleTime: cfg.Browser.SettleTime,
		})
		defer browser.Close()
		raw, err = browser.Capture(ctx, targetURL, vp)
	}
	if err != nil {
		return fmt.Errorf("capture %s: %w", targetURL, err)
	}

	fp, rep := normalize.Normalize(raw)
	specs := detect.Detect(fp)
	tok := tokens.Extract(fp)

	printFingerprint(fp, rep, specs, tok)

	if fingerprintOut == "" {
		return nil
	}
	if err := os.MkdirAll(fingerprintOut, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	rec := artifact.NewRecorder(&artifact.Session{Dir: fingerprintOut, TargetURL: targetURL, StartedAt: time.Now()})
	if err := rec.SaveBaseline(fp, specs, tok); err != nil {
		return err
	}
	printStatus("✓", "Wrote baseline to "+fingerprintOut, color.FgGreen)
	return nil
}

func printFingerprint(fp *models.Fingerprint, rep normalize.Report, specs []models.ComponentSpec, tok models.DesignTokens) {
	bold := color.New(color.Bold)
	fmt.Println(bold.Sprint("=== replica fingerprint ==="))
	fmt.Println()
	fmt.Printf("URL:          %s\n", fp.URL)
	fmt.Printf("Viewport:     %s (%dx%d)\n", fp.Viewport.Name, fp.Viewport.Width, fp.Viewport.Height)
	fmt.Printf("Elements:     %d (depth %d)\n", fp.Size(), fp.Depth())
	fmt.Printf("Dropped:      %d nodes, %d properties\n", len(rep.DroppedNodes), rep.DroppedProperties)

	counts := map[models.ComponentKind]int{}
	for _, s := range specs {
		counts[s.Kind]++
	}
	fmt.Printf("Components:   %d (%d layout, %d reusable, %d leaf)\n",
		len(specs), counts[models.KindLayout], counts[models.KindReusable], counts[models.KindLeaf])
	for _, s := range specs {
		line := fmt.Sprintf("  %-9s %-4s %s", s.Kind, s.Reason, s.ID)
		if s.Recurrence > 1 {
			line += fmt.Sprintf(" x%d", s.Recurrence)
		}
		fmt.Println(line)
	}

	fmt.Println()
	fmt.Println(bold.Sprint("Design tokens"))
	for _, cat := range []models.TokenCategory{models.TokenColor, models.TokenSpacing, models.TokenTypography} {
		values := tok.Category(cat)
		fmt.Printf("  %s: %d\n", cat, len(values))
		for _, name := range sortedKeys(values) {
			fmt.Printf("    %-12s %s\n", name, values[name])
		}
	}
}
