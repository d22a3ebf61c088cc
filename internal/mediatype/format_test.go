package mediatype

import "testing"

func TestVideoFormat_ZeroValueIsZero(t *testing.T) {
	var f VideoFormat
	if !f.IsZero() {
		t.Fatalf("zero value VideoFormat should report IsZero")
	}
	if NewVideoFormat("1080p").IsZero() {
		t.Fatalf("non-empty VideoFormat should not report IsZero")
	}
}

func TestVideoFormat_Equal(t *testing.T) {
	a := NewVideoFormat("1080p")
	b := NewVideoFormat("1080p")
	c := NewVideoFormat("720p")
	if !a.Equal(b) {
		t.Fatalf("expected equal formats to compare equal")
	}
	if a.Equal(c) {
		t.Fatalf("expected different formats to compare unequal")
	}
}

func TestAudioFormat_String(t *testing.T) {
	f := NewAudioFormat("high")
	if f.String() != "high" {
		t.Fatalf("expected String() to return the configured name, got %q", f.String())
	}
}
