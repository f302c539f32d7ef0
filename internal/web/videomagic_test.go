package web

import "testing"

func TestDetectVideo(t *testing.T) {
	pad := func(b []byte) []byte { return append(b, make([]byte, 16)...) }
	ftyp := func(brand string) []byte { return pad(append([]byte{0, 0, 0, 0x1c, 'f', 't', 'y', 'p'}, brand...)) }
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{"mp4 isom", mp4Header, "mp4", false},
		{"mp4 large ftyp box", pad([]byte{0, 0, 0, 0x20, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}), "mp4", false},
		{"quicktime brand", pad([]byte{0, 0, 0, 0x14, 'f', 't', 'y', 'p', 'q', 't', ' ', ' '}), "mov", false},
		{"legacy quicktime", pad([]byte{0, 0, 0, 0x08, 'w', 'i', 'd', 'e', 0, 0, 0, 0}), "mov", false},
		{"avi", pad([]byte("RIFF\x00\x00\x00\x00AVI LIST")), "avi", false},
		{"wav is riff but not avi", pad([]byte("RIFF\x00\x00\x00\x00WAVEfmt ")), "", false},
		{"matroska", pad([]byte("\x1A\x45\xDF\xA3\x93\x42\x82\x88matroska")), "mkv", false},
		{"webm", pad([]byte("\x1A\x45\xDF\xA3\x93\x42\x82\x84webm")), "mkv", false},
		{"still image ftyp brand", pad([]byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c'}), "", false},
		{"brand iso4", ftyp("iso4"), "mp4", false},
		{"brand iso5", ftyp("iso5"), "mp4", false},
		{"brand iso6", ftyp("iso6"), "mp4", false},
		{"brand 3gp4", ftyp("3gp4"), "mp4", false},
		{"brand 3gp5", ftyp("3gp5"), "mp4", false},
		{"brand MSNV", ftyp("MSNV"), "mp4", false},
		{"brand f4v", ftyp("f4v "), "mp4", false},
		{"brand XAVC", ftyp("XAVC"), "mp4", false},
		{"text", []byte("hello, this is plain text"), "", false},
		{"short", []byte("abc"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectVideo(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectVideo error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("DetectVideo = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllowedExt(t *testing.T) {
	for name, want := range map[string]bool{
		"a.mp4":       true,
		"B.MOV":       true,
		"c.mkv":       true,
		"d.avi":       true,
		"e.webm":      false,
		"noext":       false,
		"f.mp4.exe":   false,
		"../g.mp4":    true,
		"h.gif":       false,
		"archive.MkV": true,
	} {
		if _, got := allowedExt(name); got != want {
			t.Fatalf("allowedExt(%q) = %v, want %v", name, got, want)
		}
	}
}
