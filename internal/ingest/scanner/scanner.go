// Package scanner implements the ingest pipeline's two-phase file discovery
// pass: a single-threaded recursive walk that guards against symlink loops,
// followed by a parallel magic-byte verification fan-out.
package scanner

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"

	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/events"
	"github.com/wkmp/core/internal/logging"
)

// maxFileSize is the scanner's hard ceiling; anything larger is skipped
// without being opened.
const maxFileSize = 2 * 1024 * 1024 * 1024 // 2 GiB

const defaultMaxDepth = 32

const sniffLen = 12

// audioExtensions gates Phase 1 candidates before Phase 2 ever opens a file.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".m4a":  true,
	".mp4":  true,
	".aac":  true,
	".wma":  true,
	".aiff": true,
	".aif":  true,
}

// skipNames are directory or file basenames Phase 1 never descends into or
// collects: VCS metadata and common OS/NAS housekeeping clutter.
var skipNames = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"@eaDir":       true,
	"@Recycle":     true,
	"#recycle":     true,
	".DS_Store":    true,
	"Thumbs.db":    true,
	"desktop.ini":  true,
}

// Config configures one scan pass.
type Config struct {
	RootFolder string
	MaxDepth   int // 0 uses defaultMaxDepth
	Workers    int // 0 uses runtime.NumCPU()
}

// DiscoveredFile is a Phase 1 candidate: an audio-extension file within the
// depth bound and size ceiling, reached without crossing a symlink loop.
type DiscoveredFile struct {
	Path string
	Size int64
}

// VerifiedFile is a DiscoveredFile whose leading bytes matched a recognized
// container/codec signature in Phase 2.
type VerifiedFile struct {
	DiscoveredFile
	Format string // "mp3", "flac", "ogg", "mp4", "wav"
}

// SkippedFile records a Phase 2 candidate that failed verification.
type SkippedFile struct {
	Path   string
	Reason string
}

// Result is the outcome of a full two-phase Scan.
type Result struct {
	Verified []VerifiedFile
	Skipped  []SkippedFile
}

// Scanner performs the depth-bounded walk plus magic-byte verification pass
// over one root folder.
type Scanner struct {
	cfg Config
	bus *events.EventBus
	log *slog.Logger
}

func New(cfg Config, bus *events.EventBus) *Scanner {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Scanner{cfg: cfg, bus: bus, log: logging.ForService("ingest-scanner")}
}

// Scan runs Phase 1 then Phase 2 over the configured root folder, publishing
// a FilesDiscoveredEvent after Phase 1 and a ScanCompleteEvent after Phase 2.
func (s *Scanner) Scan(ctx context.Context, sessionID uuid.UUID) (Result, error) {
	discovered, err := s.walk()
	if err != nil {
		return Result{}, wkmperrors.New(err).
			Component("ingest-scanner").
			Category(wkmperrors.CategoryScan).
			Context("root_folder", s.cfg.RootFolder).
			Build()
	}
	if s.log != nil {
		s.log.Info("scan phase 1 complete", "root", s.cfg.RootFolder, "candidates", len(discovered))
	}
	if s.bus != nil {
		s.bus.TryPublish(events.NewFilesDiscoveredEvent(sessionID, s.cfg.RootFolder, len(discovered)))
	}

	verified, skipped := s.verify(ctx, discovered)
	if s.log != nil {
		s.log.Info("scan phase 2 complete", "root", s.cfg.RootFolder, "verified", len(verified), "skipped", len(skipped))
	}
	if s.bus != nil {
		s.bus.TryPublish(events.NewScanCompleteEvent(sessionID, s.cfg.RootFolder, len(verified), len(skipped)))
	}

	return Result{Verified: verified, Skipped: skipped}, nil
}

// walk performs Phase 1: a single-threaded recursive descent so a single set
// of canonicalized (symlink-resolved) directory paths can be maintained for
// loop detection, rather than needing per-goroutine coordination over it.
func (s *Scanner) walk() ([]DiscoveredFile, error) {
	visited := make(map[string]bool)
	var out []DiscoveredFile

	var descend func(dir string, depth int) error
	descend = func(dir string, depth int) error {
		if depth > s.cfg.MaxDepth {
			return nil
		}
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return nil // broken symlink or permission error: skip, don't fail the whole scan
		}
		if visited[real] {
			return nil // already descended into this real directory
		}
		visited[real] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil
		}
		for _, entry := range entries {
			name := entry.Name()
			if skipNames[name] {
				continue
			}
			full := filepath.Join(dir, name)

			if entry.IsDir() {
				if err := descend(full, depth+1); err != nil {
					return err
				}
				continue
			}

			info, err := os.Stat(full) // follows symlinks-to-files too
			if err != nil {
				continue
			}
			if info.IsDir() {
				if err := descend(full, depth+1); err != nil {
					return err
				}
				continue
			}
			if !audioExtensions[strings.ToLower(filepath.Ext(name))] {
				continue
			}
			if info.Size() > maxFileSize {
				if s.log != nil {
					s.log.Warn("skipping oversized file", "path", full, "size", info.Size())
				}
				continue
			}
			out = append(out, DiscoveredFile{Path: full, Size: info.Size()})
		}
		return nil
	}

	if _, err := os.Stat(s.cfg.RootFolder); err != nil {
		return nil, err
	}
	if err := descend(s.cfg.RootFolder, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// verify performs Phase 2: a bounded worker pool reads the first sniffLen
// bytes of every Phase 1 candidate and matches it against known magic
// signatures, independently of file extension.
func (s *Scanner) verify(ctx context.Context, candidates []DiscoveredFile) ([]VerifiedFile, []SkippedFile) {
	workers := s.cfg.Workers
	if len(candidates) == 0 {
		return nil, nil
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}
	if workers < 1 {
		workers = 1
	}

	in := make(chan DiscoveredFile, workers*2)
	var mu sync.Mutex
	var verified []VerifiedFile
	var skipped []SkippedFile

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range in {
				format, ok := sniff(f.Path)
				mu.Lock()
				if ok {
					verified = append(verified, VerifiedFile{DiscoveredFile: f, Format: format})
				} else {
					skipped = append(skipped, SkippedFile{Path: f.Path, Reason: "no recognized audio signature"})
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			break feed
		case in <- c:
		}
	}
	close(in)
	wg.Wait()

	return verified, skipped
}

// sniff opens path and matches its leading bytes against the signatures
// Phase 2 recognizes.
func sniff(path string) (format string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && n < 4 {
		return "", false
	}
	return matchSignature(buf[:n])
}

// matchSignature checks b against ID3, raw MPEG frame sync, fLaC, OggS,
// ftyp (MP4/M4A family), and RIFF+WAVE.
func matchSignature(b []byte) (string, bool) {
	switch {
	case len(b) >= 3 && bytes.Equal(b[:3], []byte("ID3")):
		return "mp3", true
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0:
		return "mp3", true // raw MPEG frame sync, no ID3 header
	case len(b) >= 4 && bytes.Equal(b[:4], []byte("fLaC")):
		return "flac", true
	case len(b) >= 4 && bytes.Equal(b[:4], []byte("OggS")):
		return "ogg", true
	case len(b) >= 8 && bytes.Equal(b[4:8], []byte("ftyp")):
		return "mp4", true
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE")):
		return "wav", true
	default:
		return "", false
	}
}
