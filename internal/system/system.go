package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultFFmpeg is looked up on PATH.
const DefaultFFmpeg = "ffmpeg"

// h264Preference is ordered best first: VideoToolbox on macOS, NVENC on
// NVIDIA hosts, then software x264.
var h264Preference = []string{"h264_videotoolbox", "h264_nvenc", "libx264"}

// ListEncoders runs `ffmpeg -encoders` once and returns the encoder names.
func ListEncoders(ctx context.Context, binary string) (map[string]bool, error) {
	if binary == "" {
		binary = DefaultFFmpeg
	}
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -encoders: %w", err)
	}
	return parseEncoders(string(out)), nil
}

// parseEncoders reads lines like " V....D libx264   libx264 H.264 ...".
func parseEncoders(out string) map[string]bool {
	names := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] == "=" || len(fields[0]) != 6 || strings.Trim(fields[0], "VASFXBD.") != "" {
			continue
		}
		names[fields[1]] = true
	}
	return names
}

// BestH264Encoder picks the preferred H.264 encoder from the available set.
// It returns "" when none is present.
func BestH264Encoder(available map[string]bool) string {
	for _, name := range h264Preference {
		if available[name] {
			return name
		}
	}
	return ""
}

type Memory struct {
	Total       uint64
	Available   uint64
	UsedPercent float64
}

func (m Memory) String() string {
	return fmt.Sprintf("%s свободно из %s (занято %.1f%%)", HumanBytes(m.Available), HumanBytes(m.Total), m.UsedPercent)
}

func MemoryStats() (Memory, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Memory{}, err
	}
	return Memory{Total: vm.Total, Available: vm.Available, UsedPercent: vm.UsedPercent}, nil
}

// CanvasBytes estimates the RGBA memory of a w×h surface.
func CanvasBytes(w, h int) uint64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	return uint64(w) * uint64(h) * 4
}

func HumanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FindLatest returns the most recently modified file in dir accepted by match.
func FindLatest(dir string, match func(name string) bool) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !match(f.Name()) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено подходящих файлов", dir)
	}
	return latestFile, nil
}
