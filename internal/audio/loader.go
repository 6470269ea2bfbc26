package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"go.uber.org/zap"
)

const defaultMaxBytes = 64 << 20

// Loader fetches and decodes media sources.
type Loader struct {
	httpClient *http.Client
	maxBytes   int64
	logger     *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the HTTP client used for remote sources.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		l.httpClient = c
	}
}

// WithMaxBytes caps the size of a source.
func WithMaxBytes(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a new Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxBytes:   defaultMaxBytes,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches src and decodes it. src may be an http(s) URL, a file URL,
// or a local path. The body is buffered in memory so the result can seek.
func (l *Loader) Load(ctx context.Context, src string) (*Source, error) {
	if src == "" {
		return nil, &MediaError{Code: CodeUnsupported, URL: src, Err: errors.New("empty source")}
	}

	var (
		data        []byte
		contentType string
		err         error
	)

	u, parseErr := url.Parse(src)
	switch {
	case parseErr == nil && (u.Scheme == "http" || u.Scheme == "https"):
		data, contentType, err = l.fetch(ctx, src)
	case parseErr == nil && u.Scheme == "file":
		data, err = l.readFile(u.Path)
	default:
		data, err = l.readFile(src)
	}
	if err != nil {
		return nil, err
	}

	format := detectFormat(src, contentType)
	l.logger.Debug("decoding media",
		zap.String("src", src),
		zap.String("format", format),
		zap.Int("bytes", len(data)),
	)

	return decode(src, format, data)
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", &MediaError{Code: CodeUnsupported, URL: src, Err: err}
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, "", classifyTransport(ctx, src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &MediaError{
			Code: CodeNetwork,
			URL:  src,
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	data, err := l.readCapped(resp.Body)
	if err != nil {
		if me := new(MediaError); errors.As(err, &me) {
			me.URL = src
			return nil, "", me
		}
		return nil, "", classifyTransport(ctx, src, err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func (l *Loader) readFile(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, &MediaError{Code: CodeUnsupported, URL: p, Err: err}
	}
	defer f.Close()

	data, err := l.readCapped(f)
	if err != nil {
		if me := new(MediaError); errors.As(err, &me) {
			me.URL = p
			return nil, me
		}
		return nil, &MediaError{Code: CodeNetwork, URL: p, Err: err}
	}
	return data, nil
}

func (l *Loader) readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, &MediaError{
			Code: CodeUnsupported,
			Err:  fmt.Errorf("source exceeds %d bytes", l.maxBytes),
		}
	}
	return data, nil
}

func classifyTransport(ctx context.Context, src string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &MediaError{Code: CodeAborted, URL: src, Err: err}
	}
	return &MediaError{Code: CodeNetwork, URL: src, Err: err}
}

// detectFormat picks a decoder from the content type, falling back to the
// file extension.
func detectFormat(src, contentType string) string {
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			switch mt {
			case "audio/mpeg", "audio/mp3", "audio/mpeg3":
				return "mp3"
			case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
				return "wav"
			}
		}
	}

	p := src
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".mp3":
		return "mp3"
	case ".wav", ".wave":
		return "wav"
	}
	return ""
}

func decode(src, format string, data []byte) (*Source, error) {
	var (
		streamer beep.StreamSeekCloser
		f        beep.Format
		err      error
	)

	rc := memFile{bytes.NewReader(data)}
	switch format {
	case "mp3":
		streamer, f, err = mp3.Decode(rc)
	case "wav":
		streamer, f, err = wav.Decode(rc)
	default:
		return nil, &MediaError{Code: CodeUnsupported, URL: src, Err: errors.New("unrecognized media type")}
	}
	if err != nil {
		return nil, &MediaError{Code: CodeDecode, URL: src, Err: err}
	}

	return &Source{URL: src, Streamer: streamer, Format: f}, nil
}
