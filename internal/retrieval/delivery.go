package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Method names a delivery path.
type Method string

const (
	MethodShare    Method = "share"
	MethodDownload Method = "download"
	MethodOpen     Method = "open"
)

// Download describes a resolved video ready for delivery.
type Download struct {
	URL      string
	Filename string
	VideoID  string
	Title    string
}

// Delivery reports where a delivered video ended up.
type Delivery struct {
	Location string
	Size     int64
}

// Sharer hands the video file to a share target.
type Sharer interface {
	CanShareFiles() bool
	Share(ctx context.Context, d Download) (Delivery, error)
}

// Saver stores the video file locally.
type Saver interface {
	Save(ctx context.Context, d Download) (Delivery, error)
}

// Opener hands the download URL to something that opens it.
type Opener interface {
	Open(ctx context.Context, d Download) (Delivery, error)
}

// ObjectStore is where shared files are uploaded.
type ObjectStore interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// ObjectSharer shares a video by uploading it to an object store and returning
// its link.
type ObjectSharer struct {
	Store      ObjectStore
	HTTPClient *http.Client
	Prefix     string
}

func (s ObjectSharer) CanShareFiles() bool {
	return s.Store != nil
}

func (s ObjectSharer) Share(ctx context.Context, d Download) (Delivery, error) {
	if !s.CanShareFiles() {
		return Delivery{}, ErrShareUnsupported
	}

	body, err := fetch(ctx, s.HTTPClient, d.URL)
	if err != nil {
		return Delivery{}, err
	}
	defer body.Close()

	// mimetype only inspects the leading bytes; keep them for the upload.
	head := make([]byte, 3072)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Delivery{}, fmt.Errorf("read video: %w", err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	if !strings.HasPrefix(mtype.String(), "video/") {
		return Delivery{}, fmt.Errorf("%w: detected %s", ErrNotVideo, mtype.String())
	}

	counter := &countingReader{r: io.MultiReader(bytes.NewReader(head), body)}
	location, err := s.Store.Save(ctx, path.Join(s.Prefix, d.VideoID, d.Filename), mtype.String(), counter)
	if err != nil {
		return Delivery{}, fmt.Errorf("share video: %w", err)
	}
	return Delivery{Location: location, Size: counter.n}, nil
}

// FileSaver writes the video into Dir under its resolved filename.
type FileSaver struct {
	Dir        string
	HTTPClient *http.Client
}

func (s FileSaver) Save(ctx context.Context, d Download) (Delivery, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Delivery{}, fmt.Errorf("create output dir: %w", err)
	}

	name := filepath.Base(d.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return Delivery{}, fmt.Errorf("invalid filename %q", d.Filename)
	}

	body, err := fetch(ctx, s.HTTPClient, d.URL)
	if err != nil {
		return Delivery{}, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(dir, ".loomdrop-*.part")
	if err != nil {
		return Delivery{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, body)
	if err != nil {
		_ = tmp.Close()
		return Delivery{}, fmt.Errorf("write video: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Delivery{}, fmt.Errorf("close temp file: %w", err)
	}

	target := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), target); err != nil {
		return Delivery{}, fmt.Errorf("move video into place: %w", err)
	}
	return Delivery{Location: target, Size: size}, nil
}

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// BrowserOpener opens the download URL with the platform URL handler.
type BrowserOpener struct {
	Run  CommandRunner
	GOOS string
}

func (o BrowserOpener) Open(ctx context.Context, d Download) (Delivery, error) {
	run := o.Run
	if run == nil {
		run = defaultCommandRunner
	}
	goos := o.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	binary, args := openCommand(goos, d.URL)
	if _, err := run(ctx, binary, args...); err != nil {
		return Delivery{}, fmt.Errorf("open %s: %w", binary, err)
	}
	return Delivery{Location: d.URL}, nil
}

func openCommand(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.Output()
}

func fetch(ctx context.Context, client *http.Client, target string) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build video request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch video: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch video: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
