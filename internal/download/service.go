package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/vidra/vidra-api/internal/config"
	"github.com/vidra/vidra-api/internal/domain"
)

// maxProbeFormats caps the encoding variants surfaced from a probe.
const maxProbeFormats = 10

// Common construction errors.
var (
	ErrNilExtractor = errors.New("extractor cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
)

// Service drives the extraction library through the probe and fetch
// phases, enforcing file-size limits and resolving produced artifacts.
type Service struct {
	extractor Extractor
	cfg       config.DownloadConfig
	logger    *slog.Logger
}

// NewService creates a download Service.
func NewService(extractor Extractor, cfg config.DownloadConfig, logger *slog.Logger) (*Service, error) {
	if extractor == nil {
		return nil, ErrNilExtractor
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Service{
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Probe extracts metadata for the given URL without downloading.
// A playlist URL resolves to its first entry when the service is
// configured to allow it; collection semantics are not exposed further.
func (s *Service) Probe(ctx context.Context, url string) (*domain.MediaInfo, []FormatInfo, error) {
	detail, err := s.extractor.Probe(ctx, url, s.cfg.Proxy)
	if err != nil {
		return nil, nil, classifyExtractorErr(err, url, domain.CodeExtractionError)
	}
	if detail == nil {
		return nil, nil, domain.NewTaskError(domain.CodeExtractionError, "failed to extract media info")
	}

	detail, err = s.resolvePlaylist(detail, url)
	if err != nil {
		return nil, nil, err
	}

	info := detail.Info
	return &info, displayFormats(detail.Formats), nil
}

// Download fetches the media at url using opts, reporting progress via
// progressFn (may be nil). It returns a classified error on failure and
// never leaves an oversized artifact on disk.
func (s *Service) Download(
	ctx context.Context,
	url string,
	opts domain.DownloadOptions,
	progressFn ProgressFunc,
) (*Outcome, error) {
	opts = opts.Normalize()
	format := BuildFormat(opts.DownloadType, opts.VideoQuality, opts.Format)

	// Short random identifier embedded in the file name so the artifact
	// can be located even when the terminal event omits its path.
	// Collision avoidance only, not cryptographic.
	uid := uuid.New().String()[:8]
	template := filepath.Join(s.cfg.Dir, fmt.Sprintf("%%(title).100s_%s.%%(ext)s", uid))

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return nil, domain.NewTaskError(domain.CodeDownloadError,
			fmt.Sprintf("cannot create download directory: %v", err))
	}

	req := FetchRequest{
		URL:            url,
		Format:         format,
		OutputTemplate: template,
		Proxy:          s.cfg.Proxy,
		ExtractAudio:   opts.DownloadType == domain.DownloadTypeAudio,
		AudioFormat:    opts.AudioFormat,
	}

	s.logger.Info("starting download",
		"url", url,
		"format", format,
		"uid", uid)

	var finishedFile string
	lastPercent := 0.0

	hook := func(ev ProgressEvent) {
		switch ev.Status {
		case ProgressDownloading:
			if ev.TotalBytes <= 0 {
				return
			}
			percent := float64(ev.DownloadedBytes) / float64(ev.TotalBytes) * 100
			// Progress within one download never moves backwards, even
			// when the library restarts a fragment.
			if percent < lastPercent {
				percent = lastPercent
			}
			if percent > 100 {
				percent = 100
			}
			lastPercent = percent
			if progressFn != nil {
				progressFn(percent, fmt.Sprintf("Downloading: %.1f%% (%s)", percent, speedString(ev.Speed)))
			}
		case ProgressFinished:
			if ev.Filename != "" {
				finishedFile = ev.Filename
			}
			lastPercent = 100
			if progressFn != nil {
				progressFn(100, "Download complete, processing...")
			}
		}
	}

	result, err := s.extractor.Fetch(ctx, req, hook)
	if err != nil {
		return nil, classifyExtractorErr(err, url, domain.CodeDownloadError)
	}
	if result == nil {
		return nil, domain.NewTaskError(domain.CodeDownloadError, "failed to download media")
	}

	path := s.resolveFile(finishedFile, result.Filename, uid)
	if path == "" {
		return nil, domain.NewTaskError(domain.CodeFileNotFound, "downloaded file not found")
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, domain.NewTaskError(domain.CodeFileNotFound, "downloaded file not found")
	}

	if fi.Size() > s.cfg.MaxFileSize {
		// Never leave an oversized artifact behind.
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("failed to remove oversized file", "path", path, "error", rmErr)
		}
		return nil, domain.NewTaskError(domain.CodeFileTooLarge,
			fmt.Sprintf("file size (%.1f MB) exceeds limit", float64(fi.Size())/1024/1024))
	}

	return &Outcome{
		Path:     path,
		FileName: filepath.Base(path),
		FileSize: fi.Size(),
		Info:     result.Info,
	}, nil
}

// resolvePlaylist collapses a playlist probe to its first entry, or
// rejects it, depending on configuration.
func (s *Service) resolvePlaylist(detail *MediaDetail, url string) (*MediaDetail, error) {
	if !detail.IsPlaylist {
		return detail, nil
	}
	if len(detail.Entries) == 0 {
		return nil, domain.NewTaskError(domain.CodeEmptyPlaylist, "playlist is empty")
	}
	if !s.cfg.TakePlaylistFirst {
		return nil, domain.NewTaskError(domain.CodeUnsupportedSite,
			"playlist URLs are not accepted: "+url)
	}
	s.logger.Info("playlist URL resolved to first entry",
		"url", url,
		"entries", len(detail.Entries))
	return detail.Entries[0], nil
}

// resolveFile picks the artifact path: the terminal event's path when
// present, then the library's reported filename, then a directory scan
// for the embedded identifier. First match wins; the identifier is
// unique per task.
func (s *Service) resolveFile(finishedFile, reportedFile, uid string) string {
	for _, candidate := range []string{finishedFile, reportedFile} {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		s.logger.Warn("cannot scan download directory", "dir", s.cfg.Dir, "error", err)
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.Contains(entry.Name(), uid) {
			return filepath.Join(s.cfg.Dir, entry.Name())
		}
	}
	return ""
}

// displayFormats keeps the video-capable variants, capped for display.
func displayFormats(formats []FormatInfo) []FormatInfo {
	out := make([]FormatInfo, 0, maxProbeFormats)
	for _, f := range formats {
		if f.VCodec == "" || f.VCodec == "none" {
			continue
		}
		out = append(out, f)
		if len(out) == maxProbeFormats {
			break
		}
	}
	return out
}

func speedString(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "..."
	}
	return fmt.Sprintf("%.1f MB/s", bytesPerSec/1024/1024)
}
