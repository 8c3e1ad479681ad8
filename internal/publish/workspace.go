package publish

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
	"gopkg.in/cheggaaa/pb.v1"
)

// Matcher decides which source entries are left out of the upload.
type Matcher struct {
	globs []glob.Glob
}

// NewMatcher compiles ignore patterns. A pattern matches either the base name
// of an entry or its slash separated path relative to the source root.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{globs: make([]glob.Glob, 0, len(patterns))}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether rel (slash separated) is ignored.
func (m *Matcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	base := path.Base(rel)
	for _, g := range m.globs {
		if g.Match(base) || g.Match(rel) {
			return true
		}
	}
	return false
}

// Stats counts what a copy transferred.
type Stats struct {
	Files   int
	Dirs    int
	Skipped int
	Bytes   int64
}

// walk visits every entry of root not excluded by m.
func walk(root string, m *Matcher, fn func(rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if m.Match(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		return fn(rel, d)
	})
}

// Measure returns the number and total size of the files an upload of root would copy.
func Measure(root string, m *Matcher) (files int, size int64, err error) {
	err = walk(root, m, func(_ string, d fs.DirEntry) error {
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files++
		size += info.Size()
		return nil
	})
	return files, size, err
}

// CopyTree copies src into dst, skipping ignored entries. Unreadable files are
// skipped with a warning. A byte progress bar is drawn on progress when it is not nil.
func CopyTree(src, dst string, m *Matcher, progress io.Writer) (Stats, error) {
	var stats Stats

	_, total, err := Measure(src, m)
	if err != nil {
		return stats, fmt.Errorf("measure source: %w", err)
	}

	bar := pb.New64(total)
	bar.Prefix("Copying ")
	bar.SetUnits(pb.U_BYTES)
	bar.SetMaxWidth(70)
	bar.SetRefreshRate(200 * time.Millisecond)
	if progress != nil {
		bar.Output = progress
	} else {
		bar.NotPrint = true
	}
	bar.Start()
	defer bar.Finish()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return stats, fmt.Errorf("create %s: %w", dst, err)
	}

	err = walk(src, m, func(rel string, d fs.DirEntry) error {
		from := filepath.Join(src, rel)
		to := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			if err := os.MkdirAll(to, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", to, err)
			}
			stats.Dirs++

		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(from)
			if err == nil {
				err = os.Symlink(target, to)
			}
			if err != nil {
				log.Warn().Err(err).Str("path", rel).Msg("Skipped link")
				stats.Skipped++
			}

		case d.Type().IsRegular():
			n, err := copyFile(from, to)
			if err != nil {
				log.Warn().Err(err).Str("path", rel).Msg("Skipped file")
				stats.Skipped++
				return nil
			}
			stats.Files++
			stats.Bytes += n
			bar.Add64(n)
		}

		return nil
	})

	return stats, err
}

// copyFile copies one regular file keeping its mode and modification time.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}

	return n, os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// FreeSpace returns the free bytes of the volume holding dir or its closest existing parent.
func FreeSpace(dir string) (uint64, error) {
	for p := filepath.Clean(dir); ; p = filepath.Dir(p) {
		if _, err := os.Stat(p); err == nil {
			usage, err := disk.Usage(p)
			if err != nil {
				return 0, fmt.Errorf("disk usage of %s: %w", p, err)
			}
			return usage.Free, nil
		}
		if parent := filepath.Dir(p); parent == p {
			return 0, fmt.Errorf("no existing parent of %s", dir)
		}
	}
}
