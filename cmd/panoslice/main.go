package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/ivlev/panoslice/internal/background"
	"github.com/ivlev/panoslice/internal/config"
	"github.com/ivlev/panoslice/internal/engine"
	"github.com/ivlev/panoslice/internal/geometry"
	"github.com/ivlev/panoslice/internal/palette"
	"github.com/ivlev/panoslice/internal/pan"
	"github.com/ivlev/panoslice/internal/source"
	"github.com/ivlev/panoslice/internal/system"
	"github.com/ivlev/panoslice/internal/watermark"
)

var buildVersion = "dev"

func main() {
	// Создаем нужные директории, если их нет
	for _, d := range []string{"input", "output"} {
		os.MkdirAll(d, 0755)
	}

	def := config.Default()

	inputPtr := flag.String("input", "", "Путь к панораме, папке с изображениями или PDF (по умолчанию: самый свежий файл в input/)")
	outputPtr := flag.String("output", def.OutputDir, "Папка для результата")
	ratioPtr := flag.String("ratio", def.AspectRatio.String(), "Формат слайда: 4:5 или 3:4")
	highResPtr := flag.Bool("high-res", false, "Высота слайда = высота исходника (без уменьшения)")
	zipPtr := flag.Bool("zip", false, "Упаковать слайды в carousel_slices.zip")
	dpiPtr := flag.Int("dpi", def.DPI, "DPI для страниц PDF")

	paletteMethodPtr := flag.String("palette", def.PaletteMethod.String(), "Палитра: sampled, dominant, converged")
	seedPtr := flag.Int64("seed", 0, "Seed для палитры (0 - случайный)")

	bgPtr := flag.String("bg", def.Background.Mode.String(), "Фон общего вида: original, blur, solid, gradient")
	blurPtr := flag.Float64("blur", def.Background.Blur, "Радиус размытия фона (px)")
	bgColorPtr := flag.String("bg-color", "", "Цвет фона solid (по умолчанию: из палитры)")
	gradientPtr := flag.String("gradient", def.Background.GradientType.String(), "Тип градиента: linear, radial")
	gradientAnglePtr := flag.Float64("gradient-angle", 0, "Угол линейного градиента (градусы)")
	gradientColorsPtr := flag.String("gradient-colors", "", "Два цвета градиента через запятую (по умолчанию: из палитры)")

	wmTypePtr := flag.String("wm", "none", "Водяной знак: none, text, image")
	wmTextPtr := flag.String("wm-text", "", "Текст водяного знака")
	wmImagePtr := flag.String("wm-image", "", "Путь к изображению водяного знака")
	wmQRPtr := flag.String("wm-qr", "", "Содержимое QR-кода для водяного знака-изображения")
	wmSizePtr := flag.Float64("wm-size", def.Watermark.FontSize, "Размер шрифта (px)")
	wmWeightPtr := flag.String("wm-weight", def.Watermark.FontWeight, "Насыщенность шрифта: normal, 500, bold")
	wmColorPtr := flag.String("wm-color", def.Watermark.Color, "Цвет текста")
	wmStrokeColorPtr := flag.String("wm-stroke-color", def.Watermark.StrokeColor, "Цвет обводки")
	wmStrokePtr := flag.Float64("wm-stroke", 0, "Толщина обводки (px)")
	wmOpacityPtr := flag.Float64("wm-opacity", def.Watermark.Opacity, "Прозрачность 0..1")
	wmPosPtr := flag.String("wm-pos", def.Watermark.Anchor.String(), "Позиция: top-left ... bottom-right, center")
	wmOffXPtr := flag.Float64("wm-offset-x", 0, "Смещение по X (px)")
	wmOffYPtr := flag.Float64("wm-offset-y", 0, "Смещение по Y (px)")

	videoPtr := flag.Bool("video", false, "Создать видео с панорамированием")
	durationPtr := flag.Float64("duration", def.Pan.DurationSec, "Длительность видео (сек)")
	fpsPtr := flag.Int("fps", def.Pan.FPS, "FPS")
	bitratePtr := flag.Float64("bitrate", float64(def.Pan.BitrateBps)/1e6, "Битрейт (Мбит/с)")
	easingPtr := flag.String("easing", def.Pan.Easing.String(), "Сглаживание: linear, ease-in-out, smooth, ease-out")
	directionPtr := flag.String("direction", def.Pan.Direction.String(), "Направление: ltr, rtl, lrl, rlr")
	formatPtr := flag.String("format", def.Pan.Format.String(), "Контейнер: mp4, webm")
	realtimePtr := flag.Bool("realtime", false, "Отдавать кадры в темпе 1/fps")
	encoderPtr := flag.String("encoder", "", "Принудительный видеоэнкодер ffmpeg (по умолчанию: автоопределение)")

	presetFilePtr := flag.String("preset-file", "", "YAML-пресет фона, водяного знака и видео")
	savePresetPtr := flag.String("save-preset", "", "Сохранить итоговые настройки в YAML-пресет")
	statsPtr := flag.Bool("stats", false, "Показать отчет о производительности")
	verbosePtr := flag.Bool("v", false, "Подробный лог")

	flag.Parse()

	level := slog.LevelWarn
	if *verbosePtr {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := def
	cfg.OutputDir = *outputPtr
	cfg.HighRes = *highResPtr
	cfg.Zip = *zipPtr
	cfg.DPI = *dpiPtr
	cfg.Seed = *seedPtr
	cfg.Video = *videoPtr
	cfg.Realtime = *realtimePtr
	cfg.Encoder = *encoderPtr
	cfg.ShowStats = *statsPtr
	cfg.BuildVersion = buildVersion

	var err error
	if cfg.AspectRatio, err = geometry.ParseAspectRatio(*ratioPtr); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	if cfg.PaletteMethod, err = palette.ParseMethod(*paletteMethodPtr); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}

	bg := cfg.Background
	if bg.Mode, err = background.ParseMode(*bgPtr); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	if bg.GradientType, err = background.ParseGradientType(*gradientPtr); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	bg.Blur = *blurPtr
	bg.Color = *bgColorPtr
	bg.GradientAngleDeg = *gradientAnglePtr
	if *gradientColorsPtr != "" {
		bg.GradientColors = splitColors(*gradientColorsPtr)
	}
	cfg.Background = bg

	wm := cfg.Watermark
	if wm.Kind, err = watermark.ParseKind(*wmTypePtr); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	if wm.Anchor, err = watermark.ParseAnchor(*wmPosPtr); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	wm.Text = *wmTextPtr
	wm.FontSize = *wmSizePtr
	wm.FontWeight = *wmWeightPtr
	wm.Color = *wmColorPtr
	wm.StrokeColor = *wmStrokeColorPtr
	wm.StrokeWidth = *wmStrokePtr
	wm.Opacity = *wmOpacityPtr
	wm.OffsetX = *wmOffXPtr
	wm.OffsetY = *wmOffYPtr
	cfg.Watermark = wm
	cfg.WatermarkImagePath = *wmImagePtr
	cfg.WatermarkQR = *wmQRPtr

	pc := cfg.Pan
	pc.DurationSec = *durationPtr
	pc.FPS = *fpsPtr
	pc.BitrateBps = int(*bitratePtr * 1e6)
	if pc.Easing, err = pan.ParseEasing(*easingPtr); err != nil {
		fmt.Printf("[!] %v, используется linear\n", err)
	}
	if pc.Direction, err = pan.ParseDirection(*directionPtr); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	if pc.Format, err = pan.ParseFormat(*formatPtr); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	cfg.Pan = pc

	if *presetFilePtr != "" {
		preset, err := config.ReadPreset(*presetFilePtr, config.PresetFrom(cfg))
		if err != nil {
			log.Fatalf("[-] Ошибка чтения пресета: %v", err)
		}
		if err := preset.Apply(&cfg); err != nil {
			log.Fatalf("[-] Ошибка пресета %s: %v", *presetFilePtr, err)
		}
		fmt.Printf("[*] Используется пресет: %s\n", *presetFilePtr)
	}

	cfg.InputPath = *inputPtr
	if cfg.InputPath == "" {
		latest, err := system.FindLatest("input", isInput)
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите панораму в input/", err)
		}
		cfg.InputPath = latest
		fmt.Printf("[*] Выбран файл: %s\n", cfg.InputPath)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}

	if *savePresetPtr != "" {
		if err := config.WritePreset(config.PresetFrom(cfg), *savePresetPtr); err != nil {
			log.Fatalf("[-] Ошибка сохранения пресета: %v", err)
		}
		fmt.Printf("[*] Пресет сохранен: %s\n", *savePresetPtr)
	}

	src, err := source.Open(cfg.InputPath)
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации источника: %v", err)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	project := engine.NewProject(&cfg, src)
	project.Logger = logger
	report, err := project.Run(ctx)
	if err != nil {
		log.Fatalf("[-] Ошибка проекта: %v", err)
	}

	for _, out := range report.Outputs {
		fmt.Printf("[+++] Успех! Результат: %s\n", out)
	}
}

func isInput(name string) bool {
	return source.IsImagePath(name) || strings.HasSuffix(strings.ToLower(name), ".pdf")
}

func splitColors(s string) []string {
	var colors []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			colors = append(colors, c)
		}
	}
	return colors
}
