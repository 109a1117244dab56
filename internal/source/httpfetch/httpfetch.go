// Package httpfetch retrieves files over plain HTTP for sources whose
// results point at directly downloadable URLs.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"fetcharr/internal/source"
	"fetcharr/internal/storage"
)

const copyChunkSize = 64 * 1024

// Fetcher streams a URL into the destination root, reporting progress as
// bytes arrive.
type Fetcher struct {
	fs      afero.Fs
	client  *http.Client
	handled []string
	logger  zerolog.Logger
}

// New builds a fetcher serving the given source ids.
func New(fs afero.Fs, client *http.Client, handled []string, logger zerolog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Fetcher{fs: fs, client: client, handled: handled, logger: logger}
}

// HandledIDs returns the source identifiers this fetcher serves.
func (f *Fetcher) HandledIDs() []string {
	out := make([]string, len(f.handled))
	copy(out, f.handled)
	return out
}

// Fetch downloads url into destRoot/category and returns the stored path.
// A 404 or 410 from the origin maps to source.ErrNotFound.
func (f *Fetcher) Fetch(ctx context.Context, url, title, destRoot, category string, onProgress source.Progress) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("httpfetch: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("httpfetch: request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", source.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("httpfetch: unexpected status %d", resp.StatusCode)
	}

	store, err := storage.NewFileStore(f.fs, destRoot)
	if err != nil {
		return "", err
	}
	out, dest, err := store.Create(path.Join(category, fileName(title, url)))
	if err != nil {
		return "", err
	}
	defer out.Close()

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	var downloaded int64
	buf := make([]byte, copyChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return "", fmt.Errorf("httpfetch: write file: %w", writeErr)
			}
			downloaded += int64(n)
			if onProgress != nil {
				onProgress(downloaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("httpfetch: read body: %w", readErr)
		}
	}

	f.logger.Debug().Str("url", url).Str("path", dest).Int64("bytes", downloaded).Msg("httpfetch: download done")
	return dest, nil
}

// fileName derives a safe filename from the display title and the URL's
// extension.
func fileName(title, url string) string {
	ext := path.Ext(path.Base(strings.SplitN(url, "?", 2)[0]))
	name := strings.TrimSpace(title)
	if name == "" {
		name = path.Base(strings.SplitN(url, "?", 2)[0])
		ext = ""
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "..", ".")
	name = replacer.Replace(name)
	if ext != "" && !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		name += ext
	}
	return name
}
