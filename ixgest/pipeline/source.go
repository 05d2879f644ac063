package pipeline

// Input source resolution. Local paths are read directly; anything else
// go-getter can detect (https, s3::, gcs::, git::) is downloaded to a temp
// file first.

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/catalogix/errors"
	"github.com/teranos/catalogix/ixgest/catalog"
)

// InputSource is a resolved input document on local disk.
type InputSource struct {
	// LocalPath is where the document can be read
	LocalPath string
	// OriginalInput is the path or URL the user gave
	OriginalInput string
	// IsRemote reports whether the document was downloaded
	IsRemote bool
	cleanup  func()
}

// Cleanup removes the temp download, if any. Safe to call multiple times.
func (s *InputSource) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Read returns the document's bytes.
func (s *InputSource) Read() ([]byte, error) {
	return catalog.ReadInput(s.LocalPath)
}

// ResolveInput resolves input to a local file. A path that exists on disk is
// used as is; a missing local path is returned unchanged so reading it
// reports the unreadable-input error.
func ResolveInput(ctx context.Context, input string, logger *zap.SugaredLogger) (*InputSource, error) {
	if input == "" {
		return nil, errors.WithHint(errors.Mark(errors.New("no input given"), catalog.ErrInputUnreadable),
			"pass the path of a JSON array of models")
	}
	if _, err := os.Stat(input); err == nil {
		return local(input), nil
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}
	detected, err := getter.Detect(input, pwd, getter.Detectors)
	if err != nil {
		return nil, errors.Wrapf(errors.Mark(err, catalog.ErrInputUnreadable), "failed to detect source type of %s", input)
	}

	logger.Debugw("go-getter detected source", "input", input, "detected", detected)

	parsed, err := url.Parse(detected)
	if err != nil || parsed.Scheme == "" || parsed.Scheme == "file" {
		return local(input), nil
	}
	return fetchInput(ctx, input, detected, logger)
}

func local(path string) *InputSource {
	return &InputSource{LocalPath: path, OriginalInput: path, cleanup: func() {}}
}

// fetchInput downloads a remote document into a temp directory.
func fetchInput(ctx context.Context, input, detected string, logger *zap.SugaredLogger) (*InputSource, error) {
	tempDir, err := os.MkdirTemp("", "catalogix-ix-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp directory")
	}
	dst := filepath.Join(tempDir, inputFileName(input))

	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     dst,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}

	logger.Infow("Fetching input", "input", input, "destination", dst)
	if err := client.Get(); err != nil {
		os.RemoveAll(tempDir)
		err = errors.Wrapf(errors.Mark(err, catalog.ErrInputUnreadable), "failed to fetch %s", input)
		return nil, errors.WithHint(err, "check the URL and any credentials the source needs")
	}

	return &InputSource{
		LocalPath:     dst,
		OriginalInput: input,
		IsRemote:      true,
		cleanup: func() {
			logger.Debugw("Cleaning up fetched input", "path", tempDir)
			os.RemoveAll(tempDir)
		},
	}, nil
}

// inputFileName picks a safe local name for a downloaded document.
func inputFileName(input string) string {
	if i := strings.IndexAny(input, "?#"); i >= 0 {
		input = input[:i]
	}
	name := input[strings.LastIndex(input, "/")+1:]
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	if name == "" || name == "." || name == ".." {
		return "input.json"
	}
	return name
}
