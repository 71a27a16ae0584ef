package extractorrpc

import "regexp"

// YouTube video id/URL patterns, ported verbatim from
// original_source/bot/mods/music/extractors/youtube/consts.py — spec §6's
// "YouTube URL regex" clause resolves to this exact pattern.
const youtubeVideoIDPattern = `[0-9A-Za-z_-]{10}[048AEIMQUYcgkosw]`

var (
	// YoutubeVideoID matches a bare 11-character YouTube video id.
	YoutubeVideoID = regexp.MustCompile(`^(?P<video_id>` + youtubeVideoIDPattern + `)$`)

	// YoutubeVideoURL matches youtube.com/watch, youtube.com/embed,
	// m.youtube.com, music.youtube.com and youtu.be URLs, with or without
	// a scheme, capturing the 11-character video id.
	YoutubeVideoURL = regexp.MustCompile(`^(?:https?://)?(?:(?:(?:www\.)?youtube\.com/(?:embed/|watch\?v=))|(?:(?:m\.|music\.)youtube\.com/watch\?v=)|(?:youtu\.be/))(?P<video_id>` + youtubeVideoIDPattern + `).*$`)
)

// ExtractYoutubeVideoID returns the video id embedded in a YouTube URL, or
// "" if the URL does not match any known YouTube link shape.
func ExtractYoutubeVideoID(url string) string {
	match := YoutubeVideoURL.FindStringSubmatch(url)
	if match == nil {
		return ""
	}
	for i, name := range YoutubeVideoURL.SubexpNames() {
		if name == "video_id" {
			return match[i]
		}
	}
	return ""
}
