package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"backend-barrierfree/internal/db"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const presignTTL = 15 * time.Minute

var (
	ErrTooLarge        = errors.New("photo exceeds 5 MB")
	ErrUnsupportedType = errors.New("only jpeg, png, webp and gif images are accepted")
	ErrEmptyFile       = errors.New("file is empty")
	ErrDisabled        = errors.New("photo storage is not configured")
	ErrSizeRequired    = errors.New("size in bytes required")
)

// Uploader stores object bytes and hands back a public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	PresignUpload(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (string, error)
	URL(key string) string
}

type Object struct {
	ID  string `json:"id"`
	Key string `json:"key"`
	URL string `json:"url"`
}

type PresignedUpload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	db       db.Querier
	uploader Uploader
}

// NewService accepts a nil uploader; photo endpoints then answer 503.
func NewService(db db.Querier, uploader Uploader) *Service {
	return &Service{db: db, uploader: uploader}
}

func (s *Service) SaveObject(ctx context.Context, userID, key, url, kind string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, object_key, url, kind)
		VALUES ($1,$2,$3,$4,$5)
	`, id, userID, key, url, kind)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UploadPhoto stores a report photo. A declared content type other than the
// generic octet-stream must agree with the sniffed one.
func (s *Service) UploadPhoto(ctx context.Context, userID, declaredType string, body io.Reader) (Object, error) {
	if s.uploader == nil {
		return Object{}, ErrDisabled
	}
	data, err := io.ReadAll(io.LimitReader(body, MaxPhotoBytes+1))
	if err != nil {
		return Object{}, err
	}
	if len(data) == 0 {
		return Object{}, ErrEmptyFile
	}
	if len(data) > MaxPhotoBytes {
		return Object{}, ErrTooLarge
	}
	sniffed := normalizeType(http.DetectContentType(data[:min(len(data), 512)]))
	declared := normalizeType(declaredType)
	if !allowedType(sniffed) || (declared != "" && declared != "application/octet-stream" && declared != sniffed) {
		return Object{}, ErrUnsupportedType
	}

	key, err := PhotoKey(userID, ulid.Make().String(), sniffed)
	if err != nil {
		return Object{}, err
	}
	url, err := s.uploader.Upload(ctx, key, sniffed, data)
	if err != nil {
		return Object{}, err
	}
	id, err := s.SaveObject(ctx, userID, key, url, "photo")
	if err != nil {
		return Object{}, err
	}
	return Object{ID: id, Key: key, URL: url}, nil
}

// Presign returns a short-lived PUT URL for direct browser uploads. The URL
// only accepts a body of the declared size, which must be within the photo cap.
func (s *Service) Presign(ctx context.Context, userID, contentType string, size int64) (PresignedUpload, error) {
	if s.uploader == nil {
		return PresignedUpload{}, ErrDisabled
	}
	if !allowedType(contentType) {
		return PresignedUpload{}, ErrUnsupportedType
	}
	if size <= 0 {
		return PresignedUpload{}, ErrSizeRequired
	}
	if size > MaxPhotoBytes {
		return PresignedUpload{}, ErrTooLarge
	}
	key, err := PhotoKey(userID, ulid.Make().String(), contentType)
	if err != nil {
		return PresignedUpload{}, err
	}
	uploadURL, err := s.uploader.PresignUpload(ctx, key, normalizeType(contentType), size, presignTTL)
	if err != nil {
		return PresignedUpload{}, err
	}
	out := PresignedUpload{
		Key:       key,
		UploadURL: uploadURL,
		URL:       s.uploader.URL(key),
		Size:      size,
		ExpiresAt: time.Now().Add(presignTTL).UTC(),
	}
	if _, err := s.SaveObject(ctx, userID, key, out.URL, "photo"); err != nil {
		return PresignedUpload{}, err
	}
	return out, nil
}
