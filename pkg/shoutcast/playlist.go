package shoutcast

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	playlistTimeout  = 10 * time.Second
	maxPlaylistBytes = 64 * 1024
)

// parsePLS returns the first FileN= entry of a PLS playlist.
func parsePLS(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "File") {
			continue
		}
		if _, url, ok := strings.Cut(line, "="); ok {
			if url = strings.TrimSpace(url); url != "" {
				return url, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "failed to read playlist")
	}

	return "", errors.New("no stream URL found in PLS playlist")
}

// parseM3U returns the first http(s) entry of an M3U playlist.
func parseM3U(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if isHTTPURL(line) {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "failed to read playlist")
	}

	return "", errors.New("no stream URL found in M3U playlist")
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isPLS(url, contentType, content string) bool {
	return strings.Contains(contentType, "audio/x-scpls") ||
		strings.Contains(contentType, "application/pls+xml") ||
		strings.HasSuffix(url, ".pls") ||
		strings.Contains(content, "[playlist]") ||
		strings.Contains(content, "File1=")
}

func isM3U(url, contentType, content string) bool {
	return strings.Contains(contentType, "audio/mpegurl") ||
		strings.Contains(contentType, "audio/x-mpegurl") ||
		strings.Contains(contentType, "application/vnd.apple.mpegurl") ||
		strings.HasSuffix(url, ".m3u") ||
		strings.HasSuffix(url, ".m3u8") ||
		strings.Contains(content, "#EXTM3U") ||
		isHTTPURL(strings.TrimSpace(content))
}

// resolvePlaylistURL returns url unchanged when it already serves an ICY
// stream, or the first stream URL listed when it serves a playlist.
func resolvePlaylistURL(ctx context.Context, client *http.Client, url, userAgent string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, playlistTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Add("accept", "*/*")
	req.Header.Add("user-agent", userAgent)
	req.Header.Add("icy-metadata", "1")

	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch URL")
	}
	defer resp.Body.Close()

	// Already a stream.
	if resp.Header.Get("icy-metaint") != "" {
		return url, nil
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}
	content := string(data)

	switch {
	case isPLS(url, contentType, content):
		streamURL, err := parsePLS(strings.NewReader(content))
		if err != nil {
			return "", errors.Wrap(err, "failed to parse PLS playlist")
		}
		return streamURL, nil
	case isM3U(url, contentType, content):
		streamURL, err := parseM3U(strings.NewReader(content))
		if err != nil {
			return "", errors.Wrap(err, "failed to parse M3U playlist")
		}
		return streamURL, nil
	}

	return "", errors.Errorf("URL does not appear to be a stream or playlist (Content-Type: %s)", contentType)
}
