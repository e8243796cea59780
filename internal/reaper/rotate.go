package reaper

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// rotate compresses src into dst and truncates src to zero length so the
// logger currently holding it open keeps writing to the same inode.
func rotate(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("reaper: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("reaper: create %s: %w", dst, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		return fmt.Errorf("reaper: compress %s: %w", src, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("reaper: finalize %s: %w", dst, err)
	}

	if err := in.Close(); err != nil {
		return fmt.Errorf("reaper: close %s: %w", src, err)
	}
	if err := os.Truncate(src, 0); err != nil {
		return fmt.Errorf("reaper: truncate %s: %w", src, err)
	}
	return nil
}
