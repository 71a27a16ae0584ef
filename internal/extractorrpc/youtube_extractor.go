package extractorrpc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/kkdai/youtube/v2"

	"github.com/bifshteksex/roombot/internal/model"
)

// searchResultVideoID matches a watch-page video id the way
// original_source's yt_dlp search backend would surface one; kkdai/youtube
// has no search RPC of its own, so Search scrapes the public results page
// for the first few candidates and resolves each one through Extract,
// mirroring the original's `ytsearch3:` (top 3) behavior.
var searchResultVideoID = regexp.MustCompile(`"videoId":"([0-9A-Za-z_-]{11})"`)

const searchResultLimit = 3

// YoutubeExtractor is the Go-side equivalent of original_source's
// YoutubeExtractor (bot/mods/music/extractors/youtube/__init__.py):
// extract resolves a URL or bare video id to playable track info, search
// returns the top few candidates for free-text input.
type YoutubeExtractor struct {
	client     youtube.Client
	httpClient *http.Client
}

// NewYoutubeExtractor constructs a YoutubeExtractor. httpClient is used
// only for the search-results page fetch; pass nil for http.DefaultClient.
func NewYoutubeExtractor(httpClient *http.Client) *YoutubeExtractor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &YoutubeExtractor{httpClient: httpClient}
}

// Extract implements Extractor. url may be a full YouTube URL or a bare
// 11-character video id (ExtractYoutubeVideoID/YoutubeVideoID resolve the
// id the same way validate_url did in the original).
func (e *YoutubeExtractor) Extract(ctx context.Context, url string) (model.Track, error) {
	videoID, err := resolveVideoID(url)
	if err != nil {
		return model.Track{}, err
	}

	video, err := e.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return model.Track{}, fmt.Errorf("extractor failed to extract video info: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return model.Track{}, fmt.Errorf("extractor failed to extract video info: no audio formats for %q", videoID)
	}
	streamURL, err := e.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return model.Track{}, fmt.Errorf("extractor failed to extract video info: %w", err)
	}

	return model.Track{
		Title:       video.Title,
		DurationSec: video.Duration.Seconds(),
		OriginID:    video.ID,
		OriginURL:   youtubeWatchURL(video.ID),
		StreamURL:   streamURL,
	}, nil
}

// Search implements Extractor, returning up to searchResultLimit
// candidates for free-text input.
func (e *YoutubeExtractor) Search(ctx context.Context, text string) ([]model.Track, error) {
	ids, err := e.searchVideoIDs(ctx, text)
	if err != nil {
		return nil, err
	}

	tracks := make([]model.Track, 0, len(ids))
	for _, id := range ids {
		track, err := e.Extract(ctx, youtubeWatchURL(id))
		if err != nil {
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func (e *YoutubeExtractor) searchVideoIDs(ctx context.Context, text string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.youtube.com/results", nil)
	if err != nil {
		return nil, fmt.Errorf("extractor failed to build search request: %w", err)
	}
	q := req.URL.Query()
	q.Set("search_query", text)
	req.URL.RawQuery = q.Encode()

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor failed to search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("extractor failed to read search results: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, m := range searchResultVideoID.FindAllStringSubmatch(string(body), -1) {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		if len(ids) == searchResultLimit {
			break
		}
	}
	return ids, nil
}

func resolveVideoID(url string) (string, error) {
	if YoutubeVideoID.MatchString(url) {
		return url, nil
	}
	if id := ExtractYoutubeVideoID(url); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("invalid url was provided: %q", url)
}

func youtubeWatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
