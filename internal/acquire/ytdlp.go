package acquire

import (
	"context"
	"os/exec"
)

// Runner executes the external download tool. Swappable for tests.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (output string, err error)
}

// execRunner shells out to yt-dlp, the same way the channel downloaders in
// production do. Output is combined stdout+stderr because yt-dlp reports
// extraction failures on either stream depending on version.
type execRunner struct {
	binary string
}

// NewRunner builds the default yt-dlp runner.
func NewRunner(binary string) Runner {
	if binary == "" {
		binary = "yt-dlp"
	}
	return execRunner{binary: binary}
}

func (r execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
