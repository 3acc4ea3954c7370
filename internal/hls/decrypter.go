package hls

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/jmylchreest/streamrelay/internal/relayerr"
)

// Decrypter invokes the operator-supplied decrypter sub-process (§6):
// `decrypt.sh {hex_keyId} {hex_key} {srcPath} {outPath} {repoRoot} {trackName}`.
// The core is agnostic to the underlying tool; only the exit code is
// observed.
type Decrypter struct {
	path   string
	logger *slog.Logger
}

// NewDecrypter constructs a Decrypter invoking the binary at path.
func NewDecrypter(path string, logger *slog.Logger) *Decrypter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decrypter{path: path, logger: logger}
}

// Invoke runs the decrypter against srcPath, writing the decrypted result to
// outPath. A non-zero exit code fails with SEGMENT_MANIPULATION_FAILED.
func (d *Decrypter) Invoke(ctx context.Context, keyID, key []byte, srcPath, outPath, repoRoot, trackName string) error {
	hexKeyID := hex.EncodeToString(keyID)
	hexKey := hex.EncodeToString(key)

	cmd := exec.CommandContext(ctx, d.path, hexKeyID, hexKey, srcPath, outPath, repoRoot, trackName)
	out, err := cmd.CombinedOutput()
	if err != nil {
		d.logger.Error("decrypter invocation failed",
			slog.String("track", trackName),
			slog.String("src", srcPath),
			slog.String("out", outPath),
			slog.String("output", string(out)),
			slog.Any("error", err))
		return relayerr.Wrap(relayerr.CategorySegment, relayerr.CodeSegmentManipulationFailed,
			fmt.Sprintf("decrypter exited non-zero for %s", trackName), err)
	}
	return nil
}
