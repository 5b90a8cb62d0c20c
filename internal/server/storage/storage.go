// Package storage uploads post images to S3-compatible object storage and
// returns their public URLs.
package storage

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// ImageStore persists an image and returns a URL anyone can fetch it from.
type ImageStore interface {
	StoreImage(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces name to a safe object key: directories are
// dropped, accents folded to ASCII, whitespace turned into underscores and
// anything else outside [A-Za-z0-9_.-] removed. A name whose stem ends up
// empty gets a random one with the original extension.
func SanitizeFilename(name string) string {
	name = path.Base("/" + strings.ReplaceAll(name, `\`, "/"))
	ext := path.Ext(name)

	stem := strings.TrimLeft(cleanPart(strings.TrimSuffix(name, ext)), "._")
	ext = cleanPart(ext)
	if ext == "." {
		ext = ""
	}

	if stem == "" {
		return uuid.NewString() + ext
	}
	return stem + ext
}

func cleanPart(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	joined := strings.Join(strings.Fields(b.String()), "_")
	return unsafeChars.ReplaceAllString(joined, "")
}

// PublicURL joins base, bucket and the escaped key.
func PublicURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + url.PathEscape(key)
}
