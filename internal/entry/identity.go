package entry

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IDFromPath derives the canonical entry id: the final path segment with its
// extension, NFC-normalized so the same file name yields the same id whatever
// normalization the filesystem reports.
func IDFromPath(mediaPath string) string {
	trimmed := strings.TrimSpace(mediaPath)
	if trimmed == "" {
		return ""
	}
	trimmed = strings.TrimRight(strings.ReplaceAll(trimmed, `\`, "/"), "/")
	if trimmed == "" {
		return ""
	}
	return norm.NFC.String(path.Base(trimmed))
}

// InferenceKey derives the key used by the inference endpoint: the entry id
// with its final extension stripped.
func InferenceKey(id string) string {
	ext := path.Ext(id)
	if ext == "" || ext == id {
		return id
	}
	return strings.TrimSuffix(id, ext)
}
