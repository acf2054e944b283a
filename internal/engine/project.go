package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ivlev/panoslice/internal/bundle"
	"github.com/ivlev/panoslice/internal/config"
	"github.com/ivlev/panoslice/internal/source"
	"github.com/ivlev/panoslice/internal/system"
	"github.com/ivlev/panoslice/internal/video"
	"github.com/ivlev/panoslice/internal/watermark"
)

// QRSize is the pixel size of a generated QR watermark.
const QRSize = 160

// SinkFactory opens a frame sink writing the encoded video to out.
type SinkFactory func(out io.Writer) video.FrameSink

// Project runs every panorama of a source through slicing and, optionally,
// the pan video.
type Project struct {
	Config  *config.Config
	Source  source.Source
	NewSink SinkFactory
	Logger  *slog.Logger
}

func NewProject(cfg *config.Config, src source.Source) *Project {
	p := &Project{
		Config: cfg,
		Source: src,
		Logger: slog.Default(),
	}
	p.NewSink = func(out io.Writer) video.FrameSink {
		s := video.NewFFmpegSink(out)
		s.Encoder = cfg.Encoder
		s.Logger = p.logger()
		return s
	}
	return p
}

func (p *Project) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Report sums up one Run.
type Report struct {
	Images   int
	Skipped  int
	Slices   int
	Videos   int
	Outputs  []string
	Process  time.Duration
	Encoding time.Duration
	Total    time.Duration
}

type renderResult struct {
	Index int
	Image image.Image
	Err   error
}

func (p *Project) Run(ctx context.Context) (*Report, error) {
	startTime := time.Now()
	cfg := p.Config
	report := &Report{}

	pageCount := p.Source.PageCount()
	if pageCount == 0 {
		return nil, fmt.Errorf("источник не содержит изображений")
	}

	wm, err := p.prepareWatermark()
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	fmt.Println("--- [PANOSLICE] ---")
	fmt.Printf("[*] Источник: %s | Изображений: %d\n", cfg.InputPath, pageCount)
	fmt.Printf("[*] Формат: %s | Режим: %s | Фон: %s\n", cfg.AspectRatio, resolutionLabel(cfg.HighRes), cfg.Background.Mode)
	if cfg.Video {
		fmt.Printf("[*] Видео: %s, %.1fs @ %d FPS, %s, %s\n", cfg.Pan.Format, cfg.Pan.DurationSec, cfg.Pan.FPS, cfg.Pan.Direction, cfg.Pan.Easing)
	}
	fmt.Println("-----------------------------")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Decoding runs one image ahead of processing.
	renders := make(chan renderResult, 1)
	go func() {
		defer close(renders)
		for i := 0; i < pageCount; i++ {
			img, err := p.Source.RenderPage(i, cfg.DPI)
			select {
			case renders <- renderResult{Index: i, Image: img, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for res := range renders {
		name := p.Source.Name(res.Index)
		if res.Err != nil {
			return report, fmt.Errorf("%s: %w", name, res.Err)
		}

		outDir := cfg.OutputDir
		if pageCount > 1 {
			outDir = filepath.Join(cfg.OutputDir, name)
		}

		err := p.processImage(ctx, res.Image, name, outDir, wm, report)
		if errors.Is(err, source.ErrNotPanorama) {
			fmt.Printf("[!] Пропуск %s: %v\n", name, err)
			report.Skipped++
			continue
		}
		if err != nil {
			return report, fmt.Errorf("%s: %w", name, err)
		}
		report.Images++
		fmt.Printf("[>] Готово: %d/%d (%s)\n", res.Index+1, pageCount, name)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if report.Images == 0 {
		return report, fmt.Errorf("нет ни одной панорамы: %w", source.ErrNotPanorama)
	}

	report.Total = time.Since(startTime)
	if cfg.ShowStats {
		p.showStats(report)
	}
	return report, nil
}

func (p *Project) processImage(ctx context.Context, img image.Image, name, outDir string, wm watermark.Settings, report *Report) error {
	cfg := p.Config
	start := time.Now()

	opts := LoadOptions{PaletteMethod: cfg.PaletteMethod, Logger: p.logger().With("image", name)}
	if cfg.Seed != 0 {
		opts.Rand = rand.New(rand.NewSource(cfg.Seed))
	}
	session, err := Load(img, opts)
	if err != nil {
		return err
	}

	bg := cfg.Background.Clone()
	seeded := session.Background()
	if bg.Color == "" {
		bg.Color = seeded.Color
	}
	if len(bg.GradientColors) == 0 {
		bg.GradientColors = seeded.GradientColors
	}
	session = session.
		WithAspectRatio(cfg.AspectRatio).
		WithHighRes(cfg.HighRes).
		WithBackground(bg).
		WithWatermark(wm)

	geo, err := session.Geometry()
	if err != nil {
		return err
	}
	src := session.Source()
	fmt.Printf("[*] %s: исходник %dx%d → %s\n", name, src.Width(), src.Height(), geo)
	if pal := session.Palette(); len(pal) > 0 {
		fmt.Printf("[*] Палитра: %s\n", pal)
	}
	p.checkMemory(system.CanvasBytes(geo.ScaledWidth, geo.ScaledHeight)*2 + system.CanvasBytes(src.Width(), src.Height()))

	out, err := session.Process()
	if err != nil {
		return err
	}
	b, err := session.Bundle(out)
	if err != nil {
		return err
	}
	path, err := p.writeBundle(b, outDir)
	if err != nil {
		return err
	}
	report.Slices += len(out.Slices)
	report.Outputs = append(report.Outputs, path)
	report.Process += time.Since(start)

	if !cfg.Video {
		return nil
	}
	start = time.Now()
	videoPath, err := p.renderVideo(ctx, session, outDir)
	report.Encoding += time.Since(start)
	if err != nil {
		return fmt.Errorf("видео: %w", err)
	}
	report.Videos++
	report.Outputs = append(report.Outputs, videoPath)
	return nil
}

func (p *Project) writeBundle(b bundle.Bundle, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	if !p.Config.Zip {
		if err := bundle.Write(bundle.DirWriter{Root: outDir}, b); err != nil {
			return "", err
		}
		return filepath.Join(outDir, bundle.FolderName(b.HighRes)), nil
	}

	path := filepath.Join(outDir, bundle.ZipName)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	zw := bundle.NewZipWriter(f)
	if err := bundle.Write(zw, b); err != nil {
		f.Close()
		return "", err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func (p *Project) renderVideo(ctx context.Context, session Session, outDir string) (string, error) {
	cfg := p.Config
	seq, err := session.PanVideo(cfg.Pan)
	if err != nil {
		return "", err
	}

	path := filepath.Join(outDir, bundle.VideoName(cfg.Pan.Format.String()))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	pacing := video.PacingNone
	if cfg.Realtime {
		pacing = video.PacingRealtime
	}
	step := max(1, seq.FPS())
	progress := func(done, total int) {
		if done%step == 0 || done == total {
			fmt.Printf("[>] Кадры: %d/%d\n", done, total)
		}
	}

	if err := video.Record(ctx, seq, p.NewSink(f), pacing, progress); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	return path, f.Close()
}

// prepareWatermark loads the image or QR overlay once for the whole run.
func (p *Project) prepareWatermark() (watermark.Settings, error) {
	cfg := p.Config
	wm := cfg.Watermark
	if wm.Kind != watermark.KindImage || wm.Image != nil {
		return wm, nil
	}
	switch {
	case cfg.WatermarkImagePath != "":
		img, err := imaging.Open(cfg.WatermarkImagePath, imaging.AutoOrientation(true))
		if err != nil {
			return wm, err
		}
		wm.Image = img
	case cfg.WatermarkQR != "":
		img, err := watermark.QRCode(cfg.WatermarkQR, QRSize)
		if err != nil {
			return wm, err
		}
		wm.Image = img
	default:
		return wm, errors.New("image watermark needs an image path or QR content")
	}
	return wm, nil
}

func (p *Project) checkMemory(need uint64) {
	m, err := system.MemoryStats()
	if err != nil {
		p.logger().Debug("memory stats unavailable", "err", err)
		return
	}
	if need > m.Available {
		fmt.Printf("[!] Нужно ~%s памяти, доступно %s\n", system.HumanBytes(need), system.HumanBytes(m.Available))
	}
}

func resolutionLabel(highRes bool) string {
	if highRes {
		return "high-res"
	}
	return "standard"
}
