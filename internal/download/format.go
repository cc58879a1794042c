package download

import (
	"fmt"

	"github.com/vidra/vidra-api/internal/domain"
)

// BuildFormat maps the requested download type and quality to a format
// selection expression for the extraction library. The expression lists
// fallback tiers separated by "/", evaluated left to right.
//
// Pure: the same inputs always produce the same expression. An explicit
// override is returned unchanged.
func BuildFormat(downloadType domain.DownloadType, videoQuality, override string) string {
	if override != "" {
		return override
	}

	switch downloadType {
	case domain.DownloadTypeAudio:
		// Best audio, else best overall.
		return "bestaudio/best"

	case domain.DownloadTypeVideo:
		switch videoQuality {
		case "best":
			return "bestvideo/best"
		case "worst":
			return "worstvideo/worst"
		default:
			// Requested height, else best video-only, else best
			// combined at or below height, else best combined.
			return fmt.Sprintf(
				"bestvideo[height<=%s]/bestvideo/best[height<=%s]/best",
				videoQuality, videoQuality,
			)
		}

	default: // audio_video
		switch videoQuality {
		case "best":
			return "bestvideo+bestaudio/bestvideo*+bestaudio/best"
		case "worst":
			return "worstvideo+worstaudio/worst"
		default:
			// Each separate-stream tier pairs the video stream with
			// best audio; single-file tiers mirror the video chain.
			return fmt.Sprintf(
				"bestvideo[height<=%s]+bestaudio/bestvideo+bestaudio/best[height<=%s]/best",
				videoQuality, videoQuality,
			)
		}
	}
}
