package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/pkg/types"
)

const (
	categoryDirectory = "directory"
	tagDirectory      = "agent-desc|directory"
	appInfoFile       = "app_info.yml"

	// ContentRootPathMissing is shipped when the scan root is unset or absent.
	ContentRootPathMissing = "50001: root-path not configured"
)

// DirectoryCollector lists the application directories directly under a root.
type DirectoryCollector struct {
	cfg    config.DirectoryAgentConfig
	logger *zap.Logger
}

func NewDirectoryCollector(cfg config.DirectoryAgentConfig, logger *zap.Logger) *DirectoryCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryCollector{cfg: cfg, logger: logger}
}

func (c *DirectoryCollector) Name() string { return config.DirectoryAgentName }

func (c *DirectoryCollector) Collect(ctx context.Context) ([]Report, error) {
	root := strings.TrimSpace(c.cfg.RootPath)
	if root == "" || !exists(root) {
		c.logger.Warn("scan root missing", zap.String("root_path", root))
		return []Report{{
			Category: CategoryAgent,
			Content:  ContentRootPathMissing,
			Level:    types.LevelWarn,
			Tags:     []string{tagDirectory},
			Payload:  "",
		}}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read root path: %w", err)
	}

	results := make([]types.Directory, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		path := filepath.Join(root, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			c.logger.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			continue
		}
		if !info.IsDir() {
			continue
		}

		dir := types.Directory{
			Path:     path,
			Created:  createdMillis(info),
			Modified: info.ModTime().UnixMilli(),
		}
		if app, ok := c.readAppInfo(path); ok {
			dir.AppName = app.AppName
			dir.AppVersion = app.AppVersion
			dir.AppDesc = app.AppDesc
			dir.LinkMan = app.LinkMan
		}
		results = append(results, dir)
	}

	return []Report{{
		Category: categoryDirectory,
		Level:    types.LevelInfo,
		Tags:     []string{tagDirectory},
		Payload:  types.DirectorySummary{RootPath: root, Results: results},
	}}, nil
}

// readAppInfo decodes app_info.yml. A malformed file yields empty fields.
func (c *DirectoryCollector) readAppInfo(dir string) (types.Directory, bool) {
	data, err := os.ReadFile(filepath.Join(dir, appInfoFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("app info unreadable", zap.String("path", dir), zap.Error(err))
		}
		return types.Directory{}, false
	}
	var app types.Directory
	if err := yaml.Unmarshal(data, &app); err != nil {
		c.logger.Warn("app info malformed", zap.String("path", dir), zap.Error(err))
		return types.Directory{}, false
	}
	return app, true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
