package logging

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// FileRotator is an io.Writer over a log file with numbered backups. When
// the file would grow past MaxSize, or Rotate is called, it becomes
// <path>.1 and older backups shift up by one. Backups past MaxBackups or
// older than MaxAge days are removed; with Compress set, backups from .2 on
// are gzipped.
type FileRotator struct {
	path       string
	maxBytes   int64
	maxBackups int
	maxAge     time.Duration
	compress   bool
	now        func() time.Time

	mu   sync.Mutex
	file *os.File
	size int64

	// compressing guards the backup set while a gzip runs.
	compressing sync.WaitGroup
}

// NewFileRotator opens cfg.FilePath for appending, creating its directory.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	r := &FileRotator{
		path:       cfg.FilePath,
		maxBytes:   cfg.MaxSize * 1024 * 1024,
		maxBackups: cfg.MaxBackups,
		maxAge:     time.Duration(cfg.MaxAge) * 24 * time.Hour,
		compress:   cfg.Compress,
		now:        time.Now,
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file, r.size = f, info.Size()
	return nil
}

// Write implements io.Writer. A single write larger than MaxSize still
// lands in one file.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if r.maxBytes > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotateLocked(); err != nil {
			return 0, err
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Rotate moves the current file to .1 and reopens. The daemon calls it on
// SIGHUP.
func (r *FileRotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotateLocked()
}

func (r *FileRotator) rotateLocked() error {
	r.compressing.Wait()

	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		r.file = nil
	}
	if err := r.shift(); err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	r.prune()

	if second := r.backupPath(2); r.compress && second != "" && filepath.Ext(second) != ".gz" {
		r.compressing.Add(1)
		go func() {
			defer r.compressing.Done()
			gzipFile(second)
		}()
	}
	return nil
}

// shift renames backup i to i+1 from the oldest down, then the live file
// to .1.
func (r *FileRotator) shift() error {
	n := r.highestBackup()
	for i := n; i >= 1; i-- {
		src := r.backupPath(i)
		if src == "" {
			continue
		}
		dst := r.numbered(i + 1)
		if filepath.Ext(src) == ".gz" {
			dst += ".gz"
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("shift log backup: %w", err)
		}
	}
	if err := os.Rename(r.path, r.numbered(1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("rename log file: %w", err)
	}
	return nil
}

func (r *FileRotator) prune() {
	for i := 1; i <= r.highestBackup(); i++ {
		path := r.backupPath(i)
		if path == "" {
			continue
		}
		if r.maxBackups > 0 && i > r.maxBackups {
			os.Remove(path)
			continue
		}
		if r.maxAge > 0 {
			if info, err := os.Stat(path); err == nil && r.now().Sub(info.ModTime()) > r.maxAge {
				os.Remove(path)
			}
		}
	}
}

func (r *FileRotator) numbered(i int) string {
	return r.path + "." + strconv.Itoa(i)
}

// backupPath returns the existing path of backup i, compressed or not, or
// "" when there is none.
func (r *FileRotator) backupPath(i int) string {
	for _, p := range []string{r.numbered(i), r.numbered(i) + ".gz"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (r *FileRotator) highestBackup() int {
	n := 0
	for r.backupPath(n+1) != "" {
		n++
	}
	return n
}

func gzipFile(path string) {
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return
	}
	zw := gzip.NewWriter(out)
	zw.Name = filepath.Base(path)
	_, err = io.Copy(zw, in)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

// Files returns the live file followed by backups, newest first.
func (r *FileRotator) Files() []string {
	r.compressing.Wait()
	out := []string{r.path}
	for i := 1; ; i++ {
		p := r.backupPath(i)
		if p == "" {
			return out
		}
		out = append(out, p)
	}
}

// Close waits for compression and closes the file.
func (r *FileRotator) Close() error {
	r.compressing.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
