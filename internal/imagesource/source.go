// Package imagesource fetches and decodes user supplied images.
package imagesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Source produces the encoded bytes of an image.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// File reads an image from the local filesystem.
type File struct {
	Path string
}

func (f File) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(f.Path)
}

func (f File) String() string { return f.Path }

// ErrSampleUnavailable means the bundled sample could not be opened. It is
// a deployment problem, not a bad upload.
var ErrSampleUnavailable = errors.New("sample image unavailable")

// Sample is the bundled demo image.
type Sample struct {
	Path string
}

func (s Sample) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := File{Path: s.Path}.Open(ctx)
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSampleUnavailable, s.Path, err)
	}
	return rc, err
}

func (s Sample) String() string { return s.Path }

// Reader wraps an already open stream, e.g. a multipart upload.
type Reader struct {
	Name string
	R    io.Reader
}

func (r Reader) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(r.R), nil
}

func (r Reader) String() string { return r.Name }

const DefaultTimeout = 30 * time.Second

// URL downloads an image over http or https.
type URL struct {
	URL    string
	Client *http.Client
	// Progress, if set, receives a copy of the body as it is read.
	// total is -1 when the server does not send a length.
	Progress func(total int64) io.Writer
}

func (u URL) String() string { return u.URL }

func (u URL) Open(ctx context.Context) (io.ReadCloser, error) {
	parsed, err := url.Parse(u.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("url has no host")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	client := u.Client
	if client == nil {
		client = NewClient(DefaultTimeout, false)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch image: %s", resp.Status)
	}

	if u.Progress == nil {
		return resp.Body, nil
	}
	return readCloser{
		Reader: io.TeeReader(resp.Body, u.Progress(resp.ContentLength)),
		Closer: resp.Body,
	}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
