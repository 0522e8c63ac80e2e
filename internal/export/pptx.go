package export

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// exportPPTX converts HTML to PPTX using pandoc. Pandoc refuses to stream
// pptx to stdout, so this goes through a temp file that is removed once the
// bytes are in memory.
func exportPPTX(html string, name string) (*Result, error) {
	if _, err := exec.LookPath("pandoc"); err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrOfficeDependencyMissing)
	}

	tmpDir, err := os.MkdirTemp("", "akredoc-pptx-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, sanitizeFilename(name)+".pptx")
	cmd := exec.Command("pandoc",
		"-f", "html",
		"-t", "pptx",
		"-o", outPath,
	)
	cmd.Stdin = strings.NewReader(html)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("pandoc failed: %s", stderr.String())
		}
		return nil, fmt.Errorf("pandoc execution failed: %w", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read pandoc output: %w", err)
	}

	return &Result{
		Data:     data,
		Filename: sanitizeFilename(name) + ".pptx",
		MimeType: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	}, nil
}
