package model

import "strings"

// allowedExtensions lists the file extensions accepted for each attachment kind.
var allowedExtensions = map[BlockKind][]string{
	KindImage:    {"jpg", "jpeg", "png", "webp", "gif"},
	KindVideo:    {"mp4", "3gp", "mov", "avi"},
	KindAudio:    {"ogg", "mp3", "wav", "aac", "m4a"},
	KindDocument: {"pdf", "doc", "docx", "xls", "xlsx", "csv", "ppt", "pptx", "txt", "zip", "rar", "apk", "json", "xml"},
}

// inferenceOrder fixes the lookup order of KindForExtension.
var inferenceOrder = []BlockKind{KindImage, KindVideo, KindAudio, KindDocument}

// AllowedExtensions returns the extensions (lowercase, without the dot)
// accepted for kind. Text blocks have none.
func AllowedExtensions(kind BlockKind) []string {
	exts := allowedExtensions[kind]
	out := make([]string, len(exts))
	copy(out, exts)
	return out
}

// ExtensionAllowed reports whether ext (with or without a leading dot, any
// case) is on the allow-list for kind.
func ExtensionAllowed(kind BlockKind, ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return false
	}
	for _, e := range allowedExtensions[kind] {
		if e == ext {
			return true
		}
	}
	return false
}

// KindForExtension returns the attachment kind whose allow-list contains ext.
func KindForExtension(ext string) (BlockKind, bool) {
	for _, k := range inferenceOrder {
		if ExtensionAllowed(k, ext) {
			return k, true
		}
	}
	return "", false
}
