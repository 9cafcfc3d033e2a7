package model

import (
	"mime"
	"path/filepath"
	"strings"
)

type MediaKind int

const (
	MediaUnsupported MediaKind = iota
	MediaMarkdown
	MediaPDF
)

const (
	ContentTypeMarkdown  = "text/markdown"
	ContentTypeXMarkdown = "text/x-markdown"
	ContentTypePDF       = "application/pdf"
)

const RejectMessage = "Only PDF (.pdf) and Markdown (.md, .markdown) files are allowed."

var extensionKinds = map[string]MediaKind{
	".md":       MediaMarkdown,
	".markdown": MediaMarkdown,
	".pdf":      MediaPDF,
}

func (k MediaKind) String() string {
	switch k {
	case MediaMarkdown:
		return "markdown"
	case MediaPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

// ContentType is the canonical declared type stored alongside the raw file.
func (k MediaKind) ContentType() string {
	switch k {
	case MediaMarkdown:
		return ContentTypeMarkdown
	case MediaPDF:
		return ContentTypePDF
	default:
		return "application/octet-stream"
	}
}

// MediaKindOf maps a declared content type (parameters allowed) to a kind.
func MediaKindOf(contentType string) MediaKind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}
	switch strings.ToLower(mediaType) {
	case ContentTypeMarkdown, ContentTypeXMarkdown:
		return MediaMarkdown
	case ContentTypePDF:
		return MediaPDF
	default:
		return MediaUnsupported
	}
}

func MediaKindOfFile(filename string) MediaKind {
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(filename))]; ok {
		return kind
	}
	return MediaUnsupported
}

// DetectMediaKind accepts a file when either its declared type or its
// extension is on the allow-list; the declared type wins when both match.
func DetectMediaKind(filename, contentType string) MediaKind {
	if kind := MediaKindOf(contentType); kind != MediaUnsupported {
		return kind
	}
	return MediaKindOfFile(filename)
}
