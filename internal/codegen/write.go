package codegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type WriteOptions struct {
	OverwriteExisting bool
}

// WriteSnippet saves content to dst through a temp file in the same
// directory. Without OverwriteExisting an existing dst is an error.
func WriteSnippet(ctx context.Context, content, dst string, opts WriteOptions) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("codegen: nothing to write")
	}
	if strings.TrimSpace(dst) == "" {
		return errors.New("codegen: destination path is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("codegen: create directory: %w", err)
	}
	if !opts.OverwriteExisting {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("codegen: destination %s already exists", dst)
		}
	}

	tmp, err := os.CreateTemp(dir, "reststudio-*"+filepath.Ext(dst))
	if err != nil {
		return fmt.Errorf("codegen: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := io.WriteString(tmp, content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("codegen: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("codegen: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("codegen: rename temp file: %w", err)
	}
	return nil
}
