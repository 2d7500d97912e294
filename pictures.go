package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxPictureBytes = 4 << 20

var (
	ErrUnsupportedPicture = errors.New("picture must be a .jpg, .jpeg or .png file")
	ErrPictureTooLarge    = errors.New("picture exceeds 4 MB")
)

// PictureStore keeps profile pictures as files under one directory.
type PictureStore struct {
	dir string
}

func NewPictureStore(cfg PicturesConfig) (*PictureStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create picture directory: %w", err)
	}
	return &PictureStore{dir: cfg.Dir}, nil
}

func (p *PictureStore) Dir() string {
	return p.dir
}

// Save writes the upload under a random name that keeps the uploaded
// extension and returns that name.
func (p *PictureStore) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		return "", ErrUnsupportedPicture
	}

	name := uuid.NewString() + ext
	path := filepath.Join(p.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create picture file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, maxPictureBytes+1))
	closeErr := f.Close()
	if err == nil && n > maxPictureBytes {
		err = ErrPictureTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrPictureTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write picture: %w", err)
	}
	return name, nil
}

// Remove deletes a stored picture. The shared default picture is never removed.
func (p *PictureStore) Remove(name string) error {
	if name == "" || name == defaultImageFile {
		return nil
	}
	err := os.Remove(filepath.Join(p.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove picture: %w", err)
	}
	return nil
}
