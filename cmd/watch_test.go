package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TFMV/panewatch/internal/watch"
)

func TestRunWatchListsUnwatchableDirectories(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	var buf bytes.Buffer
	err := runWatch(context.Background(), &buf, []string{missing})
	if !errors.Is(err, watch.ErrWatchFailed) {
		t.Fatalf("runWatch = %v, want ErrWatchFailed", err)
	}
	if !strings.Contains(buf.String(), "ERROR: "+missing) {
		t.Fatalf("no manual listing for %s:\n%s", missing, buf.String())
	}
}
