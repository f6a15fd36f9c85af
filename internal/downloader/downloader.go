package downloader

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	errs "fcsync/pkg/errors"
	"fcsync/pkg/logger"
	"fcsync/pkg/ratelimit"
	"fcsync/pkg/storage"

	"github.com/gabriel-vasile/mimetype"
)

const unknownExtension = ".unknown"

// ContentClient fetches remote content on the shared session
type ContentClient interface {
	Head(ctx context.Context, rawURL string) (string, error)
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Request describes one file to materialize
type Request struct {
	Dir      string
	URL      string
	Stem     string
	MimeHint string
}

// Result describes what Download did
type Result struct {
	Path    string
	Skipped bool
	Size    int64
}

// Downloader writes remote files into post directories. A target that
// already exists is never fetched again.
type Downloader struct {
	client  ContentClient
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// New creates a downloader. A nil limiter means no delay between downloads.
func New(client ContentClient, limiter ratelimit.Limiter, log logger.Logger) *Downloader {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Downloader{
		client:  client,
		limiter: limiter,
		logger:  log,
	}
}

// Download materializes req.URL as <Dir>/<Stem><ext>. Without a mime hint the
// content type is read with HEAD first so the target name is known before
// the existence check.
func (d *Downloader) Download(ctx context.Context, req Request) (Result, error) {
	mediaType := req.MimeHint
	if mediaType == "" {
		headType, err := d.client.Head(ctx, req.URL)
		if err != nil {
			return Result{}, contentError(err, "head %s", req.URL)
		}
		mediaType = headType
	}

	target := filepath.Join(req.Dir, req.Stem+ResolveExtension(mediaType, req.URL))
	result := Result{Path: target}

	exists, err := storage.Exists(target)
	if err != nil {
		return result, err
	}
	if exists {
		result.Skipped = true
		logger.LogDownload(d.logger, target, 0, true, nil)
		return result, nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return result, err
	}

	body, err := d.client.Open(ctx, req.URL)
	if err != nil {
		return result, contentError(err, "fetch %s", req.URL)
	}
	defer body.Close()

	size, err := storage.WriteAtomic(target, body)
	if err != nil {
		var srcErr *storage.SourceError
		if errors.As(err, &srcErr) {
			err = contentError(srcErr.Err, "read body of %s", req.URL)
		}
		logger.LogDownload(d.logger, target, size, false, err)
		return result, err
	}

	result.Size = size
	logger.LogDownload(d.logger, target, size, false, nil)
	return result, nil
}

// contentError turns a failed content request into a download error. Only a
// sign-in redirect stays as it is so that it can stop the run; a 401 or 403
// on a single file is that file's failure.
func contentError(err error, format string, args ...interface{}) error {
	if errors.Is(err, errs.ErrSignInRedirect) {
		return err
	}
	code := 0
	var typed *errs.Error
	if errors.As(err, &typed) {
		code = typed.Code
	}
	return errs.Download(code, err, format, args...)
}

// ResolveExtension picks the file extension for content of the given media
// type fetched from rawURL: the registered extension of the media type, else
// the suffix of the URL path, else ".unknown".
func ResolveExtension(mediaType, rawURL string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	if mediaType != "" && mediaType != "application/octet-stream" {
		if m := mimetype.Lookup(mediaType); m != nil && m.Extension() != "" {
			return m.Extension()
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && ext != "." {
			return ext
		}
	}

	return unknownExtension
}
