// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/killindicator/extension/internal/config"
	"github.com/killindicator/extension/pkg/core"
)

// FeedExport is the root JSON structure of an exported kill feed.
type FeedExport struct {
	ExtensionVersion string          `json:"extensionVersion"`
	Role             string          `json:"role"`
	LocalNode        uint64          `json:"localNode"`
	LocalAgent       uint16          `json:"localAgent"`
	StartTime        time.Time       `json:"startTime"`
	EndTime          time.Time       `json:"endTime"`
	Kills            []KillJSON      `json:"kills"`
	Indicators       []IndicatorJSON `json:"indicators"`
	// Summary maps indicator source to count and mean delay.
	Summary map[string]SourceSummary `json:"summary"`
}

// KillJSON is one attributed kill.
type KillJSON struct {
	Time    int64      `json:"time"`
	Entity  uint16     `json:"entity"`
	Player  *uint16    `json:"player"`
	Item    *core.Item `json:"item"`
	Channel string     `json:"channel"`
}

// IndicatorJSON is one shown confirmation.
type IndicatorJSON struct {
	Time     int64      `json:"time"`
	Entity   uint16     `json:"entity"`
	Source   string     `json:"source"`
	Delay    int64      `json:"delay"`
	Item     *core.Item `json:"item"`
	Position [3]float32 `json:"position"`
}

// SourceSummary aggregates indicators of one source.
type SourceSummary struct {
	Count     int     `json:"count"`
	MeanDelay float64 `json:"meanDelay"`
}

// exportJSON writes the feed to a (gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	timestamp := b.started.Format("20060102_150405")
	filename := fmt.Sprintf("killfeed_%s_%d_%s.json", export.Role, export.LocalNode, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	b.lastMeta = exportMeta{
		role:       export.Role,
		node:       export.LocalNode,
		duration:   b.ended.Sub(b.started),
		kills:      len(export.Kills),
		indicators: len(export.Indicators),
	}
	return nil
}

func (b *Backend) buildExport() FeedExport {
	export := FeedExport{
		ExtensionVersion: b.version,
		Role:             b.session.Role.String(),
		LocalNode:        uint64(b.session.LocalNode),
		LocalAgent:       uint16(b.session.LocalAgent),
		StartTime:        b.started.UTC(),
		EndTime:          b.ended.UTC(),
		Kills:            make([]KillJSON, 0, len(b.kills)),
		Indicators:       make([]IndicatorJSON, 0, len(b.indicators)),
		Summary:          make(map[string]SourceSummary),
	}

	for _, k := range b.kills {
		kj := KillJSON{
			Time:    k.Time,
			Entity:  uint16(k.Entity),
			Item:    k.Item,
			Channel: k.Channel.String(),
		}
		if k.Player != nil {
			id := uint16(k.Player.ID)
			kj.Player = &id
		}
		export.Kills = append(export.Kills, kj)
	}

	totals := make(map[string]int64)
	for _, e := range b.indicators {
		src := e.Source.String()
		export.Indicators = append(export.Indicators, IndicatorJSON{
			Time:     e.Time,
			Entity:   uint16(e.Entity),
			Source:   src,
			Delay:    e.Delay,
			Item:     e.Item,
			Position: [3]float32{e.Position.X, e.Position.Y, e.Position.Z},
		})
		s := export.Summary[src]
		s.Count++
		export.Summary[src] = s
		totals[src] += e.Delay
	}
	for src, s := range export.Summary {
		s.MeanDelay = float64(totals[src]) / float64(s.Count)
		export.Summary[src] = s
	}

	return export
}

// ExportSession writes a previously recorded session in the same format as a
// live export and returns the file path.
func ExportSession(cfg config.MemoryConfig, version string, info core.SessionInfo, start, end time.Time, kills []core.KillEvent, indicators []core.IndicatorEvent) (string, error) {
	b := New(cfg, version)
	b.session = &info
	b.started, b.ended = start, end
	b.kills, b.indicators = kills, indicators
	if err := b.exportJSON(); err != nil {
		return "", err
	}
	return b.lastExportPath, nil
}

// ExportedFilePath returns the path of the last export, empty before one.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// ExportMetadata describes the last export.
func (b *Backend) ExportMetadata() core.FeedMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return core.FeedMetadata{
		Role:       b.lastMeta.role,
		Node:       b.lastMeta.node,
		Duration:   b.lastMeta.duration,
		Kills:      b.lastMeta.kills,
		Indicators: b.lastMeta.indicators,
	}
}

func writeJSON(path string, data FeedExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data FeedExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode feed: %w", err)
	}
	return gzWriter.Close()
}
