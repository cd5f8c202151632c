package extractors

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	wkmperrors "github.com/wkmp/core/internal/errors"
)

// Fingerprinter computes a Chromaprint-style fingerprint for a passage by
// spawning Chromaprint's own `fpcalc` command-line tool — there is no pure
// Go fingerprint implementation in reach, and `fpcalc` is the reference
// implementation every AcoustID client (including Chromaprint's own
// bindings) shells out to. Grounded on the same exec.LookPath/
// exec.CommandContext idiom as the ffmpeg and Essentia fallbacks.
type Fingerprinter struct {
	binaryName string
}

func NewFingerprinter() *Fingerprinter { return &Fingerprinter{binaryName: "fpcalc"} }

type fpcalcOutput struct {
	Duration    float64 `json:"duration"`
	Fingerprint string  `json:"fingerprint"`
}

// Fingerprint runs fpcalc against filePath, trimmed to [startTick, endTick]
// via -length/-start flags computed from the passage bounds, and returns
// the fingerprint string plus the duration fpcalc measured.
func (f *Fingerprinter) Fingerprint(ctx context.Context, filePath string, startSec, lengthSec float64) (string, int, error) {
	binPath, err := exec.LookPath(f.binaryName)
	if err != nil {
		return "", 0, wkmperrors.New(err).
			Component("fingerprinter").
			Category(wkmperrors.CategoryConfiguration).
			Context("operation", "locate_fpcalc_binary").
			Build()
	}

	args := []string{"-json"}
	if startSec > 0 {
		args = append(args, "-start", strconv.FormatFloat(startSec, 'f', 3, 64))
	}
	if lengthSec > 0 {
		args = append(args, "-length", strconv.FormatFloat(lengthSec, 'f', 3, 64))
	}
	args = append(args, filePath)

	cmd := exec.CommandContext(ctx, binPath, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", 0, wkmperrors.New(err).
			Component("fingerprinter").
			Category(wkmperrors.CategoryExtraction).
			Context("path", filePath).
			Build()
	}

	var out fpcalcOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return "", 0, wkmperrors.New(err).
			Component("fingerprinter").
			Category(wkmperrors.CategoryIntegration).
			Build()
	}

	return out.Fingerprint, int(out.Duration), nil
}
