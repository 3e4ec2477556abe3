package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/printzone"
	"github.com/menta2k/printzone/internal/config"
	"github.com/menta2k/printzone/internal/logging"
	"github.com/menta2k/printzone/internal/utils"
	"github.com/menta2k/printzone/pkg/persistence"
	"github.com/menta2k/printzone/pkg/processing"
	"github.com/menta2k/printzone/pkg/types"
)

const usage = `usage: printzone <command> [flags]

commands:
  validate  check a zone against a base image and print the report and score
  export    flatten a design into a zone at the base image's native resolution
  preview   render a small preview of the placed design
  suggest   propose a printable zone for a product photo
  draft     list, show or purge saved drafts
  watch     export on start and again whenever the config file changes

run "printzone <command> -h" for the flags of a command`

// common holds the flags every command accepts
type common struct {
	configPath string
	logLevel   string
	image      string
	zone       string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "config file (yaml or json); default "+config.GetConfigPath()+" when present")
	fs.StringVar(&c.logLevel, "log", "", "log level override: debug|info|warn|error")
	fs.StringVar(&c.image, "image", "", "base image path or URL (jpg/png/webp)")
	fs.StringVar(&c.zone, "zone", "", "zone in image pixels: x,y,w,h[,rotation]")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "validate", "score":
		err = runValidate(args)
	case "export":
		err = runExport(args)
	case "preview":
		err = runPreview(args)
	case "suggest":
		err = runSuggest(args)
	case "draft":
		err = runDraft(args)
	case "watch":
		err = runWatch(args)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("command failed")
	}
}

// configFile returns the explicit -config file or the default one when it exists
func (c common) configFile() string {
	if c.configPath == "" && utils.FileExists(config.GetConfigPath()) {
		return config.GetConfigPath()
	}
	return c.configPath
}

// checkImage rejects local base images the loader cannot decode by extension
func checkImage(source string) error {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return nil
	}
	if !utils.IsImageFile(source) {
		return fmt.Errorf("%s: not a jpg, png, gif or webp file", source)
	}
	if !utils.FileExists(source) {
		return fmt.Errorf("%s: no such file", source)
	}
	return nil
}

func loadConfig(c common) (*config.Config, error) {
	path := c.configFile()

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Console)
	return cfg, nil
}

// openEngine loads the config, builds the engine and loads the base image
func openEngine(ctx context.Context, c common) (*printzone.Engine, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	eng, err := startEngine(ctx, c, cfg)
	if err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}

func startEngine(ctx context.Context, c common, cfg *config.Config) (*printzone.Engine, error) {
	if c.image != "" {
		if err := checkImage(c.image); err != nil {
			return nil, err
		}
	}
	eng, err := printzone.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if c.image != "" {
		if _, err := eng.LoadBaseImage(ctx, c.image); err != nil {
			eng.Close()
			return nil, err
		}
	}
	return eng, nil
}

func parseZone(s string) (types.Delimitation, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 5 {
		return types.Delimitation{}, fmt.Errorf("zone %q: want x,y,w,h[,rotation]", s)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.Delimitation{}, fmt.Errorf("zone %q: %w", s, err)
		}
		vals[i] = v
	}
	z := types.Delimitation{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3], Type: types.ZoneRectangle}
	if len(vals) == 5 {
		z.Rotation = vals[4]
	}
	return z, nil
}

func parseSize(s string) (types.Dimensions, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return types.Dimensions{}, fmt.Errorf("size %q: want WxH", s)
	}
	wf, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return types.Dimensions{}, fmt.Errorf("size %q: %w", s, err)
	}
	hf, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return types.Dimensions{}, fmt.Errorf("size %q: %w", s, err)
	}
	return types.Dimensions{Width: wf, Height: hf}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runValidate(args []string) error {
	var c common
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	c.register(fs)
	fs.Parse(args)
	if c.image == "" || c.zone == "" {
		return fmt.Errorf("-image and -zone are required")
	}

	zone, err := parseZone(c.zone)
	if err != nil {
		return err
	}
	ctx := context.Background()
	eng, _, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer eng.Close()

	report, err := eng.Validate(zone)
	if err != nil {
		return err
	}
	feedback, err := eng.Score(zone)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"report":  report,
		"quality": feedback,
	})
}

// placement holds the flags of commands that place a design
type placement struct {
	common
	design   string
	text     string
	fontSize float64
	color    string
	draftKey string
}

func (p *placement) register(fs *flag.FlagSet) {
	p.common.register(fs)
	fs.StringVar(&p.design, "design", "", "design image path or URL")
	fs.StringVar(&p.text, "text", "", "text to place in the zone")
	fs.Float64Var(&p.fontSize, "fontsize", 48, "text size in base image pixels")
	fs.StringVar(&p.color, "color", "#000000", "text color (#rgb or #rrggbb)")
	fs.StringVar(&p.draftKey, "draft", "", "restore the zone and designs from this draft key instead of -zone/-design")
}

// place builds the session described by the flags
func (p *placement) place(ctx context.Context) (*printzone.Engine, *config.Config, error) {
	cfg, err := loadConfig(p.common)
	if err != nil {
		return nil, nil, err
	}
	eng, err := p.placeWith(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}

func (p *placement) placeWith(ctx context.Context, cfg *config.Config) (*printzone.Engine, error) {
	if p.image == "" {
		return nil, fmt.Errorf("-image is required")
	}
	if p.draftKey == "" && p.zone == "" {
		return nil, fmt.Errorf("-zone or -draft is required")
	}
	eng, err := startEngine(ctx, p.common, cfg)
	if err != nil {
		return nil, err
	}
	if err := p.apply(ctx, eng); err != nil {
		eng.Close()
		return nil, err
	}
	return eng, nil
}

// apply restores the draft or places the zone, design and text from the flags
func (p *placement) apply(ctx context.Context, eng *printzone.Engine) error {
	if p.draftKey != "" {
		_, err := eng.RestoreDraft(ctx, p.draftKey)
		return err
	}

	z, err := parseZone(p.zone)
	if err != nil {
		return err
	}
	zone, err := eng.PlaceZone(z)
	if err != nil {
		return err
	}

	if p.design != "" {
		el, fit, err := eng.AttachDesign(ctx, zone.ID, types.DesignRef{ID: filepath.Base(p.design), Source: p.design})
		if err != nil {
			return err
		}
		log.Info().
			Str("design", el.ID).
			Float64("x", el.X).Float64("y", el.Y).
			Float64("w", el.Width).Float64("h", el.Height).
			Float64("display_scale", fit.Scale).
			Msg("design placed")
	}
	if p.text != "" {
		if _, err := eng.AddText(zone.ID, p.text, p.fontSize, p.color); err != nil {
			return err
		}
	}
	return nil
}

func runExport(args []string) error {
	var p placement
	var out string
	var debug bool
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	p.register(fs)
	fs.StringVar(&out, "out", "", "output file; default <output_dir>/<image>_final.<format>")
	fs.BoolVar(&debug, "debug", false, "also write a debug overlay next to the output")
	fs.Parse(args)

	ctx := context.Background()
	eng, cfg, err := p.place(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	if out == "" {
		out = utils.GenerateOutputFilename(p.image, cfg.Export.OutputDir, "_final", cfg.Export.Format)
	}
	if err := exportFile(ctx, eng, out); err != nil {
		return err
	}

	if debug {
		overlay, err := eng.DebugOverlay()
		if err != nil {
			return err
		}
		dbgPath := utils.GenerateOutputFilename(out, filepath.Dir(out), "_debug", "png")
		if err := saveImage(overlay, dbgPath, cfg); err != nil {
			return err
		}
		log.Info().Str("file", dbgPath).Msg("debug overlay written")
	}
	return nil
}

// exportFile flattens the session into out and logs the result
func exportFile(ctx context.Context, eng *printzone.Engine, out string) error {
	start := time.Now()
	if err := eng.ExportToFile(ctx, out); err != nil {
		return err
	}
	ev := log.Info().Str("file", out).Dur("took", time.Since(start))
	if info, err := os.Stat(out); err == nil {
		ev = ev.Str("size", utils.FormatFileSize(info.Size()))
	}
	ev.Msg("export written")
	return nil
}

func runWatch(args []string) error {
	var p placement
	var out string
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	p.register(fs)
	fs.StringVar(&out, "out", "", "output file; default <output_dir>/<image>_final.<format>")
	fs.Parse(args)

	path := p.configFile()
	if path == "" {
		return fmt.Errorf("watch needs -config or %s", config.GetConfigPath())
	}

	// the watcher calls back on its own goroutine; the engine is driven from here
	reloads := make(chan *config.Config, 1)
	cfg, err := config.Watch(path, func(next *config.Config) {
		select {
		case <-reloads:
		default:
		}
		reloads <- next
	})
	if err != nil {
		return err
	}
	if p.logLevel != "" {
		cfg.Log.Level = p.logLevel
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Console)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := p.placeWith(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	target := func(c *config.Config) string {
		if out != "" {
			return out
		}
		return utils.GenerateOutputFilename(p.image, c.Export.OutputDir, "_final", c.Export.Format)
	}
	if err := exportFile(ctx, eng, target(cfg)); err != nil {
		return err
	}
	log.Info().Str("config", path).Msg("watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case next := <-reloads:
			if p.logLevel != "" {
				next.Log.Level = p.logLevel
			}
			logging.Setup(next.Log.Level, next.Log.Console)
			if err := eng.ApplyConfig(next); err != nil {
				log.Error().Err(err).Msg("reloaded config not applied")
				continue
			}
			if err := exportFile(ctx, eng, target(next)); err != nil {
				log.Error().Err(err).Msg("re-export failed")
			}
		}
	}
}

func runPreview(args []string) error {
	var p placement
	var out, size string
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	p.register(fs)
	fs.StringVar(&out, "out", "", "output file; default <output_dir>/<image>_preview.png")
	fs.StringVar(&size, "size", "300x300", "widget size WxH")
	fs.Parse(args)

	dims, err := parseSize(size)
	if err != nil {
		return err
	}
	ctx := context.Background()
	eng, cfg, err := p.place(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	img, err := eng.Preview(ctx, dims)
	if err != nil {
		return err
	}
	if out == "" {
		out = utils.GenerateOutputFilename(p.image, cfg.Export.OutputDir, "_preview", "png")
	}
	if err := saveImage(img, out, cfg); err != nil {
		return err
	}
	log.Info().Str("file", out).Str("size", size).Msg("preview written")
	return nil
}

func runSuggest(args []string) error {
	var c common
	var backend, url, model, draftKey string
	var apply bool
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	c.register(fs)
	fs.StringVar(&backend, "backend", "", "suggestion backend override: local|ollama|llamacpp")
	fs.StringVar(&url, "url", "", "model server URL override")
	fs.StringVar(&model, "model", "", "model name override")
	fs.StringVar(&draftKey, "draft", "", "save the suggested zone as a draft under this key")
	fs.BoolVar(&apply, "apply", false, "save the zone even when validation reports errors")
	fs.Parse(args)
	if c.image == "" {
		return fmt.Errorf("-image is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if backend != "" {
		cfg.Vision.Backend = backend
	}
	if url != "" {
		cfg.Vision.URL = url
	}
	if model != "" {
		cfg.Vision.Model = model
	}

	ctx := context.Background()
	eng, err := startEngine(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	res, report, err := eng.SuggestZone(ctx)
	if err != nil {
		return err
	}
	if res.Fallback {
		log.Warn().Str("reason", res.Suggestion.Reason).Msg("using centered fallback zone")
	}

	if draftKey != "" {
		if !report.Valid() && !apply {
			return fmt.Errorf("suggested zone is invalid: %s", strings.Join(report.Errors, "; "))
		}
		eng.OpenDraft(draftKey)
		if _, err := eng.PlaceZone(res.Zone); err != nil {
			return err
		}
		if _, err := eng.CommitZone(); err != nil {
			return err
		}
		eng.FlushDraft()
		log.Info().Str("key", draftKey).Msg("suggested zone saved")
	}

	return printJSON(map[string]any{
		"suggestion": res,
		"report":     report,
	})
}

func runDraft(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: printzone draft list|show|purge|key [flags]")
	}
	sub, args := args[0], args[1:]

	var c common
	var key, vendor, product, design string
	fs := flag.NewFlagSet("draft "+sub, flag.ExitOnError)
	c.register(fs)
	fs.StringVar(&key, "key", "", "draft key")
	fs.StringVar(&vendor, "vendor", "", "vendor id for key")
	fs.StringVar(&product, "product", "", "product id for key")
	fs.StringVar(&design, "design", "", "design id for key")
	fs.Parse(args)

	if sub == "key" {
		fmt.Println(persistence.DraftKey(vendor, product, design))
		return nil
	}

	ctx := context.Background()
	eng, cfg, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer eng.Close()

	switch sub {
	case "list":
		drafts, err := eng.ListDrafts(ctx)
		if err != nil {
			return err
		}
		for _, d := range drafts {
			fmt.Printf("%s\t%s\t%.0fx%.0f@%.0f,%.0f\t%d elements\n",
				d.Key, d.SavedAt.Format(time.RFC3339), d.Zone.Width, d.Zone.Height, d.Zone.X, d.Zone.Y, len(d.Elements))
		}
		return nil
	case "show":
		if key == "" {
			key = persistence.DraftKey(vendor, product, design)
		}
		drafts, err := eng.ListDrafts(ctx)
		if err != nil {
			return err
		}
		for _, d := range drafts {
			if d.Key == key {
				return printJSON(d)
			}
		}
		return fmt.Errorf("%w: %s", persistence.ErrNotFound, key)
	case "purge":
		n, err := eng.PurgeDrafts(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("removed", n).Dur("max_age", cfg.Persistence.MaxAge).Msg("drafts purged")
		return nil
	default:
		return fmt.Errorf("unknown draft command %q", sub)
	}
}

func saveImage(img image.Image, path string, cfg *config.Config) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return processing.NewProcessor().SaveImage(img, path, processing.FormatFromPath(path), cfg.Export.Quality, cfg.Export.Lossless)
}
