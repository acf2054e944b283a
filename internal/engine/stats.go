package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/panoslice/internal/system"
)

const benchmarkLog = "benchmark.log"

func (p *Project) showStats(r *Report) {
	memLine := "n/a"
	if m, err := system.MemoryStats(); err == nil {
		memLine = m.String()
	}

	fmt.Print(formatReport(p.Config.BuildVersion, memLine, r))

	logEntry := fmt.Sprintf("[%s] Build: %s | Input: %s | Images: %d | Slices: %d | Videos: %d | Total: %.2fs | Process: %.2fs | Encode: %.2fs\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Config.BuildVersion,
		filepath.Base(p.Config.InputPath),
		r.Images,
		r.Slices,
		r.Videos,
		r.Total.Seconds(),
		r.Process.Seconds(),
		r.Encoding.Seconds(),
	)

	f, err := os.OpenFile(benchmarkLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		f.WriteString(logEntry)
		f.Close()
	} else {
		fmt.Printf("[!] Не удалось записать %s: %v\n", benchmarkLog, err)
	}
}

func formatReport(build, memory string, r *Report) string {
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Images: %d (skipped %d)\n"+
			"Slices: %d | Videos: %d\n"+
			"Total Time: %.2fs\n"+
			"Slicing: %.2fs\n"+
			"Video Encoding: %.2fs\n"+
			"Memory: %s\n"+
			"----------------------------\n",
		build, r.Images, r.Skipped, r.Slices, r.Videos, r.Total.Seconds(), r.Process.Seconds(), r.Encoding.Seconds(), memory,
	)
}
