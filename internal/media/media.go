// Package media persists uploaded files under a local media root and serves
// them back by relative URL path.
package media

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"project_archive/internal/config"
)

var ErrExtensionNotAllowed = errors.New("file extension not allowed")

// photo uploads accept images only
var photoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type Store struct {
	root    string
	baseURL string
}

func NewStore(cfg config.Media) *Store {
	return &Store{
		root:    cfg.Root,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// SavePhoto writes the upload under root/subdir with a random filename and
// returns the relative URL path.
func (s *Store) SavePhoto(file *multipart.FileHeader, subdir string) (string, error) {
	const op = "media.SavePhoto"

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !photoExtensions[ext] {
		return "", fmt.Errorf("%s: %w: %q", op, ErrExtensionNotAllowed, ext)
	}

	name, err := randomHex(16)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	targetDir := filepath.Join(s.root, filepath.FromSlash(subdir))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(targetDir, name+ext))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return s.baseURL + "/" + subdir + "/" + name + ext, nil
}

// FullURL resolves a stored relative path against the request's base URL.
func FullURL(baseURL, relative string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(relative, "/")
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
