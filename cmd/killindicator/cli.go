package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/killindicator/extension/internal/api"
	"github.com/killindicator/extension/internal/config"
	"github.com/killindicator/extension/internal/database"
	"github.com/killindicator/extension/internal/model"
	"github.com/killindicator/extension/internal/model/convert"
	"github.com/killindicator/extension/internal/storage/memory"
	"github.com/killindicator/extension/pkg/core"

	"gorm.io/gorm"
)

const usage = `usage:
  killindicator export [file.db] <sessionID>...  export stored sessions as kill feed JSON
  killindicator backups [dir]                    list dumped sqlite feeds
  killindicator ping                             check the feed server`

// main runs when the library is built as an executable. The host never
// calls it.
func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Println(usage)
		return
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "export":
		err = exportSessions(args[1:])
	case "backups":
		err = listBackups(args[1:])
	case "ping":
		cfg := config.GetStorageConfig().API
		err = api.New(cfg.ServerURL, cfg.APIKey).Healthcheck()
		if err == nil {
			fmt.Println("feed server is online:", cfg.ServerURL)
		}
	default:
		err = fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openFeedDB opens path as sqlite, or the configured Postgres database
// when path is empty.
func openFeedDB(path string) (*gorm.DB, error) {
	if path != "" {
		return database.OpenSQLite(path)
	}
	cfg := config.GetStorageConfig()
	if cfg.Type == "sqlite" && cfg.SQLite.Path != "" {
		return database.OpenSQLite(resolveDir(cfg.SQLite.Path))
	}
	return database.OpenPostgres(cfg.Postgres)
}

func exportSessions(args []string) error {
	var dbPath string
	if len(args) > 0 && strings.HasSuffix(args[0], ".db") {
		dbPath, args = args[0], args[1:]
	}
	if len(args) == 0 {
		return fmt.Errorf("no session IDs provided")
	}

	db, err := openFeedDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	storageCfg := config.GetStorageConfig()
	memCfg := storageCfg.Memory
	memCfg.OutputDir = resolveDir(memCfg.OutputDir)

	var uploader *api.Client
	if storageCfg.API.Upload && storageCfg.API.ServerURL != "" {
		uploader = api.New(storageCfg.API.ServerURL, storageCfg.API.APIKey)
	}

	for _, raw := range args {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", raw, err)
		}
		path, meta, err := exportSession(db, uint(id), memCfg)
		if err != nil {
			return fmt.Errorf("session %d: %w", id, err)
		}
		fmt.Printf("session %d: %d kills, %d indicators -> %s\n", id, meta.Kills, meta.Indicators, path)

		if uploader != nil {
			if err := uploader.Upload(path, meta); err != nil {
				return fmt.Errorf("session %d: %w", id, err)
			}
			fmt.Printf("session %d: uploaded\n", id)
		}
	}
	return nil
}

func exportSession(db *gorm.DB, id uint, cfg config.MemoryConfig) (string, core.FeedMetadata, error) {
	var meta core.FeedMetadata

	var session model.Session
	if err := db.Where("id = ?", id).First(&session).Error; err != nil {
		return "", meta, err
	}

	var kills []model.Kill
	if err := db.Where("session_id = ?", id).Order("game_time ASC").Find(&kills).Error; err != nil {
		return "", meta, fmt.Errorf("error getting kills: %w", err)
	}
	var indicators []model.Indicator
	if err := db.Where("session_id = ?", id).Order("game_time ASC").Find(&indicators).Error; err != nil {
		return "", meta, fmt.Errorf("error getting indicators: %w", err)
	}

	coreKills := make([]core.KillEvent, 0, len(kills))
	for _, k := range kills {
		coreKills = append(coreKills, convert.KillToCore(k))
	}
	coreIndicators := make([]core.IndicatorEvent, 0, len(indicators))
	for _, i := range indicators {
		coreIndicators = append(coreIndicators, convert.IndicatorToCore(i))
	}

	info := convert.SessionToCore(session)
	path, err := memory.ExportSession(cfg, session.ExtensionVersion, info,
		session.StartTime, session.EndTime, coreKills, coreIndicators)
	if err != nil {
		return "", meta, err
	}
	meta = core.FeedMetadata{
		Role:       info.Role.String(),
		Node:       uint64(info.LocalNode),
		Duration:   session.EndTime.Sub(session.StartTime),
		Kills:      len(coreKills),
		Indicators: len(coreIndicators),
	}
	return path, meta, nil
}

func listBackups(args []string) error {
	dir := resolveDir(config.GetStorageConfig().SQLite.OutputDir)
	if len(args) > 0 {
		dir = args[0]
	}
	paths, err := database.BackupDBPaths(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("no sqlite feeds in", dir)
		return nil
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}
