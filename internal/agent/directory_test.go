package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/pkg/types"
)

func TestDirectoryCollectorListsSubdirectories(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "billing"))
	mustMkdir(t, filepath.Join(root, "orders"))
	mustWrite(t, filepath.Join(root, "README.txt"), "not a directory")
	mustWrite(t, filepath.Join(root, "billing", "app_info.yml"), "app_name: billing\napp_version: 2.1.0\napp_desc: invoices\nlink_man: ops\n")
	mustWrite(t, filepath.Join(root, "orders", "app_info.yml"), "app_name: [unterminated\n")

	c := NewDirectoryCollector(config.DirectoryAgentConfig{RootPath: root}, zaptest.NewLogger(t))
	reports, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(reports) != 1 || reports[0].Category != "directory" || reports[0].Tags[0] != "agent-desc|directory" {
		t.Fatalf("unexpected reports %+v", reports)
	}
	summary := reports[0].Payload.(types.DirectorySummary)
	if summary.RootPath != root || len(summary.Results) != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	billing := summary.Results[0]
	if billing.Path != filepath.Join(root, "billing") || billing.AppName != "billing" || billing.AppVersion != "2.1.0" || billing.AppDesc != "invoices" || billing.LinkMan != "ops" {
		t.Fatalf("unexpected billing entry %+v", billing)
	}
	if billing.Modified <= 0 {
		t.Fatalf("expected modification time, got %d", billing.Modified)
	}

	orders := summary.Results[1]
	if orders.AppName != "" {
		t.Fatalf("expected malformed app info to be ignored, got %+v", orders)
	}
}

func TestDirectoryCollectorMissingRoot(t *testing.T) {
	for _, root := range []string{"", filepath.Join(t.TempDir(), "absent")} {
		c := NewDirectoryCollector(config.DirectoryAgentConfig{RootPath: root}, nil)
		reports, err := c.Collect(context.Background())
		if err != nil {
			t.Fatalf("Collect(%q): %v", root, err)
		}
		if len(reports) != 1 {
			t.Fatalf("expected one report, got %+v", reports)
		}
		r := reports[0]
		if r.Category != CategoryAgent || r.Level != types.LevelWarn || r.Content != ContentRootPathMissing {
			t.Fatalf("unexpected report for %q: %+v", root, r)
		}
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func mustWrite(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
