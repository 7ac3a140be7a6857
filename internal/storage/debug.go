package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DumpHTML keeps a fetched page for debugging selectors. The file is named
// after source and id plus a timestamp, so repeated fetches don't collide.
func DumpHTML(dir, source, id, html string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create dump directory: %w", err)
	}

	name := unsafeNameRe.ReplaceAllString(source+"_"+id, "_")
	name = fmt.Sprintf("%s_%s.html", name, time.Now().UTC().Format("20060102T150405.000"))
	fullPath := filepath.Join(dir, filepath.Base(name))

	if err := os.WriteFile(fullPath, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("write html dump: %w", err)
	}
	return fullPath, nil
}
