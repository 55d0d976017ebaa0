package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/yourusername/hfcache-go/internal/domain"
	"go.uber.org/zap"
)

const defaultChunkSize = 1 << 20

// HubFetcher downloads repository files over HTTP from a Hugging Face
// compatible endpoint
type HubFetcher struct {
	client *http.Client
	cfg    domain.DownloadConfig
	logger *zap.Logger
}

// NewHubFetcher creates a new hub fetcher
func NewHubFetcher(cfg domain.DownloadConfig, logger *zap.Logger) *HubFetcher {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Revision == "" {
		cfg.Revision = "main"
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.RequestTimeout
	return &HubFetcher{
		client: &http.Client{Transport: transport},
		cfg:    cfg,
		logger: logger,
	}
}

// errStalled is the cancel cause when the body stops arriving
var errStalled = errors.New("transfer stalled")

// FileURL returns the resolve URL for one file
func (f *HubFetcher) FileURL(repoID, filename string) string {
	segments := strings.Split(filename, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/resolve/%s/%s",
		strings.TrimRight(f.cfg.Endpoint, "/"),
		repoID,
		url.PathEscape(f.cfg.Revision),
		strings.Join(segments, "/"))
}

// Fetch streams repoID/filename into w. RequestTimeout bounds the wait for
// response headers and for each body read, not the whole transfer.
func (f *HubFetcher) Fetch(ctx context.Context, repoID, filename string, w io.Writer, progress domain.ProgressFunc) (int64, error) {
	fileURL := f.FileURL(repoID, filename)

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, domain.ErrInvalidRequestf("invalid download url %s: %v", fileURL, err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	if f.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.Token)
	}

	f.logger.Debug("Fetching file", zap.String("url", fileURL))

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, classifyTransportError(ctx, reqCtx, err, fileURL)
	}
	defer resp.Body.Close()

	stall := newStallWatch(f.cfg.RequestTimeout, cancel)
	defer stall.stop()

	if err := checkStatus(resp, repoID, filename); err != nil {
		return 0, err
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	if progress != nil {
		progress(0, total)
	}

	buf := make([]byte, f.cfg.ChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := resp.Body.Read(buf)
		stall.touch()
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return written, domain.ErrIO(err, "failed to write %s", filename)
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, classifyTransportError(ctx, reqCtx, readErr, fileURL)
		}
	}

	if total > 0 && written != total {
		return written, domain.ErrNetwork(nil, "short read for %s: got %d of %d bytes", fileURL, written, total)
	}
	return written, nil
}

// stallWatch cancels a request when no body read completes within timeout.
// A zero timeout disables it.
type stallWatch struct {
	timeout time.Duration
	timer   *time.Timer
}

func newStallWatch(timeout time.Duration, cancel context.CancelCauseFunc) *stallWatch {
	w := &stallWatch{timeout: timeout}
	if timeout > 0 {
		w.timer = time.AfterFunc(timeout, func() { cancel(errStalled) })
	}
	return w
}

func (w *stallWatch) touch() {
	if w.timer != nil {
		w.timer.Reset(w.timeout)
	}
}

func (w *stallWatch) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

func checkStatus(resp *http.Response, repoID, filename string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound("file %s not found in repository %s", filename, repoID)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return platformerrors.Newf(platformerrors.CodeForbidden, "access to %s denied (HTTP %d)", repoID, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return platformerrors.Newf(platformerrors.CodeRateLimit, "rate limited by hub (HTTP %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return domain.ErrNetwork(nil, "hub returned %s", resp.Status)
	default:
		return platformerrors.Newf(platformerrors.CodeExecutionFailed, "unexpected response %s", resp.Status)
	}
}

// classifyTransportError leaves caller cancellation untouched so callers can
// tell it apart from a failed transfer. A stalled body is a timeout.
func classifyTransportError(ctx, reqCtx context.Context, err error, fileURL string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(context.Cause(reqCtx), errStalled) {
		return platformerrors.Wrapf(errStalled, platformerrors.CodeTimeout, "timed out waiting for data from %s", fileURL)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return platformerrors.Wrapf(err, platformerrors.CodeTimeout, "timed out fetching %s", fileURL)
	}
	return domain.ErrNetwork(err, "failed to fetch %s", fileURL)
}
