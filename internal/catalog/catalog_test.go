package catalog

import (
	"path/filepath"
	"testing"

	"github.com/skydive-data/xbmini/internal/types"
)

func sampleLog() *types.XBMLog {
	return &types.XBMLog{
		Serial:          "ABC122345F0420",
		LoggerType:      "HAM-IMU+alt",
		FirmwareVersion: 2108,
		Sessions: []types.Session{
			{Index: 0, Records: make([]types.Record, 300)},
			{Index: 1, Records: make([]types.Record, 150)},
		},
	}
}

func TestCatalogRecordsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	c, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if c.RunID() == "" {
		t.Error("catalog opened with empty run ID")
	}

	if err := c.RecordLog("/data/A01", sampleLog(), "/data/A01/A01_processed.CSV"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.RecordLog("/data/B02", sampleLog(), "/data/B02/B02_processed.CSV"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := c.Runs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d rows, want 2", n)
	}
}

func TestCatalogPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := first.RecordLog("/data/A01", sampleLog(), "/data/A01/A01_processed.CSV"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstID := first.RunID()
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer second.Close()

	if second.RunID() == firstID {
		t.Error("a fresh open must start a new run")
	}

	if err := second.RecordLog("/data/A01", sampleLog(), "/data/A01/A01_processed.CSV"); err != nil {
		t.Fatalf("recording the same directory under a new run: %v", err)
	}

	n, err := second.Runs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d rows across runs, want 2", n)
	}
}
