package videos

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loomdrop/backend/internal/logging"
)

// Resolver turns a video identifier into a download URL and a safe filename.
type Resolver struct {
	Upstream        Upstream
	DownloadTimeout time.Duration
	MetadataTimeout time.Duration
}

// NewResolver constructs a Resolver with per-call timeouts for the mandatory
// download-URL call and the optional metadata call.
func NewResolver(upstream Upstream, downloadTimeout, metadataTimeout time.Duration) *Resolver {
	if downloadTimeout <= 0 {
		downloadTimeout = 10 * time.Second
	}
	if metadataTimeout <= 0 {
		metadataTimeout = 5 * time.Second
	}
	return &Resolver{
		Upstream:        upstream,
		DownloadTimeout: downloadTimeout,
		MetadataTimeout: metadataTimeout,
	}
}

// Resolve fetches the download URL and, best effort, the display title for
// videoID. Only the download-URL call can fail the resolution.
func (r *Resolver) Resolve(ctx context.Context, videoID string) (Resolution, error) {
	if r == nil || r.Upstream == nil {
		return Resolution{}, ErrProviderUnavailable
	}

	var (
		downloadURL string
		title       TitleResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		downloadURL, err = r.fetchDownloadURL(gctx, videoID)
		return err
	})
	g.Go(func() error {
		title = r.lookupTitle(gctx, videoID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Resolution{}, err
	}

	if title.Fallback {
		logging.FromContext(ctx).Info("using default title", "videoId", videoID, "title", title.Value, "reason", title.Err)
	}

	res := Resolution{
		DownloadURL: downloadURL,
		VideoID:     videoID,
		Filename:    SanitizeFilename(title.ForFilename(), videoID),
	}
	if !title.Fallback {
		res.Title = title.Value
	}

	return res, nil
}

func (r *Resolver) fetchDownloadURL(ctx context.Context, videoID string) (string, error) {
	ctx, span := logging.StartSpan(ctx, "upstream.transcoded_url")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, r.DownloadTimeout)
	defer cancel()

	downloadURL, err := r.Upstream.TranscodedURL(callCtx, videoID)
	if err != nil {
		logging.FromContext(ctx).Warn("download url lookup failed", "videoId", videoID, "error", err)
		return "", err
	}
	return downloadURL, nil
}

func (r *Resolver) lookupTitle(ctx context.Context, videoID string) TitleResult {
	ctx, span := logging.StartSpan(ctx, "upstream.session_info")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, r.MetadataTimeout)
	defer cancel()

	info, err := r.Upstream.SessionInfo(callCtx, videoID)
	if err != nil {
		return FallbackTitle(err)
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		return FallbackTitle(errEmptyTitle)
	}
	return ResolvedTitle(name)
}
