package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMaxCoverSize is generous; Amazon's largest renditions are ~1 MB.
const DefaultMaxCoverSize = 10 << 20

var ErrTooLarge = errors.New("file too large")

type SavedFile struct {
	RelativePath string
	SizeBytes    int64
}

// SaveCoverFile writes data under a random name in baseDir, keeping the
// extension of originalName.
func SaveCoverFile(baseDir string, originalName string, data io.Reader, maxSize int64) (SavedFile, error) {
	if baseDir == "" {
		return SavedFile{}, fmt.Errorf("empty storage directory")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return SavedFile{}, fmt.Errorf("create storage directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}

	name, err := randomHex(16)
	if err != nil {
		return SavedFile{}, fmt.Errorf("generate file name: %w", err)
	}

	filename := name + ext
	fullPath := filepath.Join(baseDir, filename)

	out, err := os.Create(fullPath)
	if err != nil {
		return SavedFile{}, fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	reader := data
	if maxSize > 0 {
		reader = io.LimitReader(data, maxSize+1)
	}

	n, err := io.Copy(out, reader)
	if err != nil {
		_ = os.Remove(fullPath)
		return SavedFile{}, fmt.Errorf("write file: %w", err)
	}

	if maxSize > 0 && n > maxSize {
		_ = os.Remove(fullPath)
		return SavedFile{}, ErrTooLarge
	}

	return SavedFile{
		RelativePath: filename,
		SizeBytes:    n,
	}, nil
}

func randomHex(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid length %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", buf), nil
}

// CoverStore downloads remote cover images into Dir and hands back the URL
// they are served under (PublicPrefix + file name).
type CoverStore struct {
	Dir          string
	PublicPrefix string
	Client       *http.Client
	MaxSize      int64
}

func NewCoverStore(dir string, client *http.Client) *CoverStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &CoverStore{
		Dir:          dir,
		PublicPrefix: "/covers/",
		Client:       client,
		MaxSize:      DefaultMaxCoverSize,
	}
}

// Mirror downloads coverURL. Anything but an image answer is an error.
func (c *CoverStore) Mirror(ctx context.Context, coverURL string) (string, error) {
	u, err := url.Parse(coverURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("not a remote cover: %q", coverURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download cover: %s", resp.Status)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("download cover: unexpected content type %q", mediaType)
	}

	name := path.Base(u.Path)
	if filepath.Ext(name) == "" {
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			name += exts[0]
		}
	}

	saved, err := SaveCoverFile(c.Dir, name, resp.Body, c.MaxSize)
	if err != nil {
		return "", err
	}
	return c.PublicPrefix + saved.RelativePath, nil
}
