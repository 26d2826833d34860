package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"medcom_capture/pkg/logger"
)

// Saver: поверхность сохранения файла (аналог скачивания в браузере).
type Saver interface {
	Save(name string, r io.Reader) (string, error)
}

// FileName строит имя вида <product>-<ISO-8601 без двоеточий>.<ext>,
// например medcom-meeting-2026-10-18T09-30-00.webm.
func FileName(product string, at time.Time, ext string) string {
	stamp := strings.ReplaceAll(at.UTC().Format("2006-01-02T15:04:05"), ":", "-")
	return fmt.Sprintf("%s-%s.%s", product, stamp, ext)
}

// DiskSaver пишет файлы в каталог загрузок.
type DiskSaver struct {
	dir string
	log logger.Logger
}

func NewDiskSaver(dir string, log logger.Logger) *DiskSaver {
	return &DiskSaver{dir: dir, log: log}
}

// Save пишет во временный файл и переименовывает, чтобы не оставить
// полузаписанный файл. Существующий файл не перезаписывается: к имени
// добавляется суффикс (1), (2), ...
func (s *DiskSaver) Save(name string, r io.Reader) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("write recording: %w", err)
	}

	target := s.uniquePath(name)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("finalize recording: %w", err)
	}

	s.log.Info("Recording saved", "path", target, "bytes", n)
	return target, nil
}

func (s *DiskSaver) uniquePath(name string) string {
	target := filepath.Join(s.dir, name)
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(s.dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
