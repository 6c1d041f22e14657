package service

import (
	"context"
	"errors"
	"strings"

	"github.com/PeraltaFrian/photo-sharing/internal/client"
	"github.com/PeraltaFrian/photo-sharing/internal/model"
)

const (
	MinLikes = 0
	MaxLikes = 5
)

// ContentStore holds photo entries and their image assets.
type ContentStore interface {
	ListPhotos(ctx context.Context) ([]model.Photo, error)
	UploadPhoto(ctx context.Context, p model.NewPhoto) (string, error)
	DeletePhoto(ctx context.Context, id string) error
	UpdateLikes(ctx context.Context, id string, likes int) error
}

// PhotoService answers ErrUnavailable for every call when no content store
// is configured.
type PhotoService struct {
	store ContentStore
}

func NewPhotoService(store ContentStore) *PhotoService {
	return &PhotoService{store: store}
}

func (s *PhotoService) List(ctx context.Context) ([]model.Photo, error) {
	if s.store == nil {
		return nil, ErrUnavailable
	}
	return s.store.ListPhotos(ctx)
}

func (s *PhotoService) Upload(ctx context.Context, p model.NewPhoto) (string, error) {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Description) == "" || len(p.Data) == 0 {
		return "", ErrInvalidInput
	}
	if s.store == nil {
		return "", ErrUnavailable
	}
	if p.ContentType == "" {
		p.ContentType = "application/octet-stream"
	}
	return s.store.UploadPhoto(ctx, p)
}

func (s *PhotoService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	if s.store == nil {
		return ErrUnavailable
	}
	return mapContentError(s.store.DeletePhoto(ctx, id))
}

func (s *PhotoService) UpdateLikes(ctx context.Context, id string, likes int) error {
	if likes < MinLikes || likes > MaxLikes {
		return ErrInvalidInput
	}
	if s.store == nil {
		return ErrUnavailable
	}
	return mapContentError(s.store.UpdateLikes(ctx, id, likes))
}

func mapContentError(err error) error {
	if errors.Is(err, client.ErrContentNotFound) {
		return ErrNotFound
	}
	return err
}
