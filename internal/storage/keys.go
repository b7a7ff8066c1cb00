package storage

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// ProofKey proofs/<project>/<slug(username)>-<user_id>/<unixnano>-<uuid><ext>
func ProofKey(projectID uuid.UUID, username string, telegramUserID int64, ext string, now time.Time) string {
	owner := slug.Make(username)
	if owner == "" {
		owner = "user"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := fmt.Sprintf("%d-%s%s", now.UnixNano(), uuid.NewString(), strings.ToLower(ext))
	return path.Join("proofs", projectID.String(), fmt.Sprintf("%s-%d", owner, telegramUserID), name)
}

// DetectImage тип содержимого и расширение по сигнатуре файла
func DetectImage(data []byte, filePath string) (contentType, ext string) {
	contentType = http.DetectContentType(data)
	switch contentType {
	case "image/jpeg":
		return contentType, ".jpg"
	case "image/png":
		return contentType, ".png"
	case "image/webp":
		return contentType, ".webp"
	case "image/gif":
		return contentType, ".gif"
	}
	ext = path.Ext(filePath)
	if ext == "" {
		ext = ".jpg"
	}
	return contentType, ext
}
