package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider retrieves secrets from files on disk, one value per file.
type FileProvider struct {
	baseDir string
}

// NewFileProvider creates a provider resolving relative keys under baseDir.
func NewFileProvider(baseDir string) *FileProvider {
	return &FileProvider{baseDir: baseDir}
}

func (f *FileProvider) Name() string {
	return "file"
}

// Get reads the secret file. Absolute keys are used as-is.
func (f *FileProvider) Get(ctx context.Context, key string) (*Secret, error) {
	path := f.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSecretNotFound
		}
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}

	// mounted secrets usually end with a newline
	value := strings.TrimRight(string(data), "\r\n")
	return &Secret{Value: value, Source: "file:" + path}, nil
}

func (f *FileProvider) path(key string) string {
	if filepath.IsAbs(key) {
		return filepath.Clean(key)
	}
	return filepath.Join(f.baseDir, keyToFilename(key))
}

// keyToFilename converts a relative key to a file name:
//   - "redis_password" -> "redis_password"
//   - "s3/secret" -> "s3_secret"
//   - "Redis.Password" -> "redis_password"
func keyToFilename(key string) string {
	filename := strings.ReplaceAll(key, "/", "_")
	filename = strings.ReplaceAll(filename, ".", "_")
	filename = strings.ReplaceAll(filename, "-", "_")
	return strings.ToLower(filename)
}
