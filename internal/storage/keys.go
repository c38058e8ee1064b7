package storage

import (
	"fmt"
	"strings"
)

// MaxPhotoBytes caps a single report photo.
const MaxPhotoBytes = 5 << 20

var photoExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// PhotoKey builds reports/<user>/<id><ext>.
func PhotoKey(userID, objectID, contentType string) (string, error) {
	ext, ok := photoExt[normalizeType(contentType)]
	if !ok {
		return "", ErrUnsupportedType
	}
	return fmt.Sprintf("reports/%s/%s%s", userID, objectID, ext), nil
}

// ParsePhotoKey is the inverse of PhotoKey.
func ParsePhotoKey(key string) (userID, objectID string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "reports" || parts[1] == "" {
		return "", "", false
	}
	name := parts[2]
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 {
		return "", "", false
	}
	return parts[1], name[:dot], true
}

func normalizeType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

func allowedType(ct string) bool {
	_, ok := photoExt[normalizeType(ct)]
	return ok
}
