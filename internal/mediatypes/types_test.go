package mediatypes

import (
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		mime string
		want Kind
	}{
		{"MP4 video", "video/mp4", KindVideo},
		{"WebM with codecs", "video/webm;codecs=vp9,opus", KindVideo},
		{"Upper case", "VIDEO/QUICKTIME", KindVideo},
		{"MP3 audio", "audio/mpeg", KindAudio},
		{"JPEG image", "image/jpeg", KindImage},
		{"PDF", "application/pdf", KindOther},
		{"Empty", "", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.mime); got != tt.want {
				t.Errorf("KindOf(%q) = %v, want %v", tt.mime, got, tt.want)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".JPG", "image/jpeg"},
		{".webm", "video/webm"},
		{".mov", "video/quicktime"},
		{".opus", "audio/opus"},
		{".xyz", DefaultMIMEType},
		{"", DefaultMIMEType},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := GetMimeType(tt.ext); got != tt.want {
				t.Errorf("GetMimeType(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestDetectMIMEType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	tests := []struct {
		name string
		file string
		data []byte
		want string
	}{
		{"by extension", "clip.mp4", nil, "video/mp4"},
		{"extension wins over content", "photo.jpg", png, "image/jpeg"},
		{"sniffed when unnamed", "", png, "image/png"},
		{"sniffed when extension unknown", "blob.bin", png, "image/png"},
		{"empty unknown", "", nil, DefaultMIMEType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIMEType(tt.file, tt.data); got != tt.want {
				t.Errorf("DetectMIMEType(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestNewBlob(t *testing.T) {
	b := NewBlob("song.mp3", []byte{1, 2, 3}, "")
	if b.MIMEType != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %q", b.MIMEType)
	}
	if b.Size() != 3 {
		t.Errorf("Expected size 3, got %d", b.Size())
	}
	if b.Kind() != KindAudio {
		t.Errorf("Expected KindAudio, got %v", b.Kind())
	}

	declared := NewBlob("song.mp3", []byte{1}, "audio/ogg")
	if declared.MIMEType != "audio/ogg" {
		t.Errorf("Declared type should be kept, got %q", declared.MIMEType)
	}

	generic := NewBlob("clip.webm", []byte{1}, DefaultMIMEType)
	if generic.MIMEType != "video/webm" {
		t.Errorf("Generic type should be refined, got %q", generic.MIMEType)
	}
}

func TestContentTypeDefault(t *testing.T) {
	b := Blob{Data: []byte("x")}
	if b.ContentType() != DefaultMIMEType {
		t.Errorf("Expected %q, got %q", DefaultMIMEType, b.ContentType())
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/jpeg", ".jpg"},
		{"video/webm", ".webm"},
		{"video/webm;codecs=vp8,opus", ".webm"},
		{"video/mp4", ".mp4"},
		{"audio/ogg", ".ogg"},
		{"application/x-unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := ExtensionFor(tt.mime); got != tt.want {
				t.Errorf("ExtensionFor(%q) = %q, want %q", tt.mime, got, tt.want)
			}
		})
	}
}

func TestDefaultName(t *testing.T) {
	if DefaultName(KindVideo) != "video.webm" {
		t.Error("unexpected video default name")
	}
	if DefaultName(KindAudio) != "audio.webm" {
		t.Error("unexpected audio default name")
	}
	if DefaultName(KindImage) != "image" {
		t.Error("unexpected image default name")
	}
}
