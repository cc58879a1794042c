package download

import (
	"context"
	"strings"

	"github.com/vidra/vidra-api/internal/domain"
)

// ProgressEvent mirrors one progress update from the extraction
// library's event stream.
type ProgressEvent struct {
	// Status is "downloading" while bytes are moving and "finished"
	// exactly once, when the artifact has been written.
	Status          string
	DownloadedBytes int64
	TotalBytes      int64
	// Speed is the current transfer rate in bytes per second, zero when
	// unknown.
	Speed float64
	// Filename is the produced file path; only meaningful on the
	// terminal "finished" event.
	Filename string
}

// Progress event status values.
const (
	ProgressDownloading = "downloading"
	ProgressFinished    = "finished"
)

// FormatInfo describes one encoding variant of the source media,
// surfaced for display purposes only.
type FormatInfo struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution"`
	Filesize   int64  `json:"filesize,omitempty"`
	VCodec     string `json:"vcodec,omitempty"`
	ACodec     string `json:"acodec,omitempty"`
}

// MediaDetail is the raw result of probing a source URL. A playlist
// carries its entries; a single item carries metadata and formats.
type MediaDetail struct {
	IsPlaylist bool
	Info       domain.MediaInfo
	Formats    []FormatInfo
	Entries    []*MediaDetail
}

// FetchRequest describes one invocation of the extraction library in
// download mode.
type FetchRequest struct {
	URL            string
	Format         string
	OutputTemplate string
	Proxy          string
	// ExtractAudio re-encodes the result to AudioFormat after download.
	ExtractAudio bool
	AudioFormat  string
}

// FetchResult is what the extraction library reports after a download
// run. Filename may be empty; the orchestrator then falls back to
// scanning the output directory.
type FetchResult struct {
	Info     domain.MediaInfo
	Filename string
}

// Extractor is the boundary to the external extraction library. It
// understands source-site semantics and performs the actual network
// fetch; this package only sequences it.
type Extractor interface {
	// Probe extracts metadata without downloading.
	Probe(ctx context.Context, url string, proxy string) (*MediaDetail, error)

	// Fetch downloads the media described by req, invoking hook for
	// every progress event.
	Fetch(ctx context.Context, req FetchRequest, hook func(ProgressEvent)) (*FetchResult, error)
}

// Outcome is the ephemeral result of one successful download, handed to
// the task lifecycle controller which copies its fields into the task
// record.
type Outcome struct {
	Path     string
	FileName string
	FileSize int64
	Info     domain.MediaInfo
}

// ProgressFunc receives (percent in [0,100], human-readable status).
type ProgressFunc func(percent float64, message string)

// classifyExtractorErr normalizes extraction library failure text into a
// task error. The upstream library reports failures as free text, so
// matching is on substrings. fallbackCode distinguishes the probe phase
// from the fetch phase.
func classifyExtractorErr(err error, url, fallbackCode string) *domain.TaskError {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "Video unavailable") || strings.Contains(msg, "Private video"):
		return domain.NewTaskError(domain.CodeVideoUnavailable, "video is unavailable or private")
	case strings.Contains(msg, "Unsupported URL"):
		return domain.NewTaskError(domain.CodeUnsupportedSite, "unsupported URL: "+url)
	case strings.Contains(msg, "HTTP Error 429") || strings.Contains(lower, "rate limit"):
		return domain.NewTaskError(domain.CodeRateLimited, "rate limited by source site")
	default:
		return domain.NewTaskError(fallbackCode, msg)
	}
}
