package notices

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skymond/radarscope/pkg/logger"
)

const noticeJSON = `[
	{"id": "A1234/26", "category": "runway", "priority": 5,
	 "position": {"lat": 43.6777, "lon": -79.6248},
	 "description": "RWY 05/23 CLSD"},
	{"id": "A1235/26", "category": "weather", "priority": 2,
	 "position": {"lat": 43.7, "lon": -79.6},
	 "description": "TS FCST"}
]`

func writeNoticeFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notices.json")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource(t *testing.T) {
	t.Run("loads notices at startup", func(t *testing.T) {
		src, err := NewFileSource(writeNoticeFile(t, noticeJSON), logger.NewNop())
		if err != nil {
			t.Fatalf("NewFileSource: %v", err)
		}
		got, err := src.GetActive(context.Background())
		if err != nil {
			t.Fatalf("GetActive: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("notices = %d, want 2", len(got))
		}
		if got[0].ID != "A1234/26" || got[0].Category != "runway" {
			t.Errorf("unexpected first notice %+v", got[0])
		}
	})

	t.Run("missing file fails at startup", func(t *testing.T) {
		if _, err := NewFileSource(filepath.Join(t.TempDir(), "absent.json"), logger.NewNop()); err == nil {
			t.Error("expected an error for a missing file")
		}
	})

	t.Run("malformed file fails at startup", func(t *testing.T) {
		if _, err := NewFileSource(writeNoticeFile(t, "{not json"), logger.NewNop()); err == nil {
			t.Error("expected an error for malformed JSON")
		}
	})

	t.Run("reloads when the file changes", func(t *testing.T) {
		path := writeNoticeFile(t, noticeJSON)
		src, err := NewFileSource(path, logger.NewNop())
		if err != nil {
			t.Fatalf("NewFileSource: %v", err)
		}

		updated := `[{"id": "A9999/26", "category": "airport", "priority": 1,
			"position": {"lat": 43.68, "lon": -79.62}, "description": "APRON CLSD"}]`
		if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
			t.Fatal(err)
		}
		// Make sure the mtime moves forward even on coarse filesystems.
		future := time.Now().Add(2 * time.Second)
		if err := os.Chtimes(path, future, future); err != nil {
			t.Fatal(err)
		}

		got, err := src.GetActive(context.Background())
		if err != nil {
			t.Fatalf("GetActive: %v", err)
		}
		if len(got) != 1 || got[0].ID != "A9999/26" {
			t.Errorf("expected the updated set, got %+v", got)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		src, err := NewFileSource(writeNoticeFile(t, noticeJSON), logger.NewNop())
		if err != nil {
			t.Fatalf("NewFileSource: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := src.GetActive(ctx); err == nil {
			t.Error("expected a context error")
		}
	})
}
