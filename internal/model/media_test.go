package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectMediaKind(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		want        MediaKind
	}{
		{name: "markdown type", filename: "notes.txt", contentType: "text/markdown", want: MediaMarkdown},
		{name: "x-markdown with charset", filename: "a", contentType: "text/x-markdown; charset=utf-8", want: MediaMarkdown},
		{name: "md extension", filename: "Rome.MD", contentType: "application/octet-stream", want: MediaMarkdown},
		{name: "markdown extension", filename: "rome.markdown", contentType: "", want: MediaMarkdown},
		{name: "pdf type", filename: "x", contentType: "application/pdf", want: MediaPDF},
		{name: "pdf extension", filename: "x.pdf", contentType: "", want: MediaPDF},
		{name: "plain text rejected", filename: "x.txt", contentType: "text/plain", want: MediaUnsupported},
		{name: "no hints", filename: "", contentType: "", want: MediaUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DetectMediaKind(tt.filename, tt.contentType))
		})
	}
}

func TestMediaKindContentType(t *testing.T) {
	require.Equal(t, MediaMarkdown, MediaKindOf(MediaMarkdown.ContentType()))
	require.Equal(t, MediaPDF, MediaKindOf(MediaPDF.ContentType()))
	require.Equal(t, MediaUnsupported, MediaKindOf(MediaUnsupported.ContentType()))
}
