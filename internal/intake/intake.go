package intake

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/common"
)

const (
	pdfMagic   = "%PDF-"
	sniffBytes = 64 << 10
)

type Config struct {
	TempDir      string // "" -> os.TempDir()
	MaxBytes     int64  // <= 0 -> 25 MiB
	SniffContent bool
}

// File is an uploaded document copied to a scoped temporary file.
// The owner must call Release exactly once it is done; extra calls are no-ops.
type File struct {
	Name   string // original filename as uploaded
	Ext    string // normalized, no dot
	Format string // constants.PDF | constants.CSV
	Path   string // temporary file path
	Size   int64
	SHA256 string
	Pages  int // PDFs only, best effort

	once   sync.Once
	err    error
	logger *slog.Logger
}

// Release deletes the temporary file. Safe to call more than once.
func (f *File) Release() error {
	if f == nil {
		return nil
	}
	f.once.Do(func() {
		err := os.Remove(f.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.err = err
			f.logger.Error("intake.temp.release_error", "path", f.Path, "error", err)
			return
		}
		f.logger.Debug("intake.temp.released", "path", f.Path, "name", f.Name)
	})
	return f.err
}

// Stager validates uploads and writes them to temporary files.
type Stager struct {
	cfg    Config
	logger *slog.Logger
}

func NewStager(cfg Config, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 25 << 20
	}
	return &Stager{cfg: cfg, logger: logger}
}

// MaxBytes is the effective upload size limit.
func (s *Stager) MaxBytes() int64 { return s.cfg.MaxBytes }

// Stage copies r into a temporary file named after the upload's extension.
// On any error nothing is left on disk.
func (s *Stager) Stage(ctx context.Context, name string, r io.Reader) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := filepath.Base(strings.TrimSpace(name))
	ext := constants.NormalizeExt(filepath.Ext(base))
	format := constants.MapExtToFormat(ext)
	if base == "" || base == "." || format == "" {
		s.logger.Warn("intake.rejected", "name", name, "reason", "extension", "ext", ext)
		return nil, common.InvalidUpload(fmt.Sprintf("unsupported file type %q: upload a PDF or CSV file", "."+ext))
	}

	tmp, err := os.CreateTemp(s.cfg.TempDir, "elsai-*."+ext)
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "create temporary file", err)
	}
	f := &File{Name: base, Ext: ext, Format: format, Path: tmp.Name(), logger: s.logger}

	h := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(r, s.cfg.MaxBytes+1))
	closeErr := tmp.Close()
	fail := func(err error) (*File, error) {
		_ = f.Release()
		return nil, err
	}
	switch {
	case copyErr != nil:
		return fail(common.NewAppError(common.CodeInternal, "write temporary file", copyErr))
	case closeErr != nil:
		return fail(common.NewAppError(common.CodeInternal, "close temporary file", closeErr))
	case n == 0:
		return fail(common.InvalidUpload(fmt.Sprintf("%s is empty", base)))
	case n > s.cfg.MaxBytes:
		return fail(common.InvalidUpload(fmt.Sprintf("%s exceeds the %d byte upload limit", base, s.cfg.MaxBytes)))
	}
	f.Size = n
	f.SHA256 = hex.EncodeToString(h.Sum(nil))

	if s.cfg.SniffContent {
		if err := s.sniff(f); err != nil {
			s.logger.Warn("intake.rejected", "name", base, "reason", "content", "error", err)
			return fail(common.InvalidUpload(fmt.Sprintf("%s: %v", base, err)))
		}
	}
	if format == constants.PDF {
		f.Pages = countPages(f.Path)
	}

	s.logger.Info("intake.staged",
		"name", f.Name,
		"format", f.Format,
		"bytes", f.Size,
		"pages", f.Pages,
		"sha256", f.SHA256,
	)
	return f, nil
}

// StagePath stages a copy of a local file, so Release never touches the original.
func (s *Stager) StagePath(ctx context.Context, path string) (*File, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, common.InvalidUpload(fmt.Sprintf("open %s: %v", path, err))
	}
	defer func(src *os.File) {
		if err := src.Close(); err != nil {
			s.logger.Warn("intake.source_close_error", "path", path, "error", err)
		}
	}(src)
	return s.Stage(ctx, filepath.Base(path), src)
}

func (s *Stager) sniff(f *File) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer fh.Close()

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(fh, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	head = head[:n]

	switch f.Format {
	case constants.PDF:
		// header may be preceded by junk within the first KiB
		window := head
		if len(window) > 1024 {
			window = window[:1024]
		}
		if !bytes.Contains(window, []byte(pdfMagic)) {
			return errors.New("not a PDF document")
		}
	case constants.CSV:
		partial := false
		if n == sniffBytes {
			// may have cut a multi-byte rune or a quoted field; check whole lines only
			if i := bytes.LastIndexByte(head, '\n'); i > 0 {
				head = head[:i+1]
			} else {
				head = trimPartialRune(head)
				partial = true
			}
		}
		if !utf8.Valid(head) {
			return errors.New("CSV is not valid UTF-8 text")
		}
		if partial {
			// first record is longer than the window
			return nil
		}
		rec, err := gocsv.DefaultCSVReader(bufio.NewReader(bytes.NewReader(head))).Read()
		if err != nil {
			return fmt.Errorf("CSV header unreadable: %w", err)
		}
		if len(rec) == 0 {
			return errors.New("CSV has no columns")
		}
	}
	return nil
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off at the end of b.
func trimPartialRune(b []byte) []byte {
	for k := 1; k < utf8.UTFMax && k <= len(b); k++ {
		if utf8.RuneStart(b[len(b)-k]) {
			if !utf8.FullRune(b[len(b)-k:]) {
				return b[:len(b)-k]
			}
			return b
		}
	}
	return b
}

// countPages returns 0 when the PDF cannot be parsed; backends still get the file.
func countPages(path string) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	fh, r, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer fh.Close()
	return r.NumPage()
}
