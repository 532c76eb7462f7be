package codec

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

func TestEncode_Format(t *testing.T) {
	exp := time.Unix(0x6712f0c0, 0)

	name, err := Encode("0123456789abcdef", exp, "mp3")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if name != "0123456789abcdef6712f0c0.mp3" {
		t.Errorf("имя: получили %q", name)
	}
}

func TestEncode_ZeroPadding(t *testing.T) {
	name, err := Encode("00000000000000ff", time.Unix(255, 0), "bin")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if name != "00000000000000ff000000ff.bin" {
		t.Errorf("имя: получили %q", name)
	}
}

func TestEncode_TruncatesToSeconds(t *testing.T) {
	exp := time.Unix(1700000000, 999_999_999)

	name, err := Encode("0123456789abcdef", exp, "ogg")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	parts, ok := Decode(name)
	if !ok {
		t.Fatalf("Decode(%q) не распознал имя", name)
	}
	if !parts.ExpiresAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("ExpiresAt: получили %v", parts.ExpiresAt)
	}
}

func TestEncode_Errors(t *testing.T) {
	valid := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		id      string
		exp     time.Time
		ext     string
		wantErr error
	}{
		{"короткий id", "abc", valid, "mp3", ErrInvalidID},
		{"заглавные в id", "0123456789ABCDEF", valid, "mp3", ErrInvalidID},
		{"не-hex в id", "0123456789abcdeg", valid, "mp3", ErrInvalidID},
		{"до epoch", "0123456789abcdef", time.Unix(-1, 0), "mp3", ErrUnencodableExpiry},
		{"после 2106", "0123456789abcdef", time.Unix(math.MaxUint32+1, 0), "mp3", ErrUnencodableExpiry},
		{"пустое расширение", "0123456789abcdef", valid, "", ErrInvalidExtension},
		{"расширение с разделителем", "0123456789abcdef", valid, "a/b", ErrInvalidExtension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.id, tt.exp, tt.ext)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("хотели %v, получили %v", tt.wantErr, err)
			}
		})
	}
}

func TestEncode_MaxExpiry(t *testing.T) {
	name, err := Encode("ffffffffffffffff", MaxExpiry, "bin")
	if err != nil {
		t.Fatalf("Encode(MaxExpiry): %v", err)
	}
	if name != "ffffffffffffffffffffffff.bin" {
		t.Errorf("имя: получили %q", name)
	}
}

// TestRoundTrip проверяет decode(encode(x)) == x на случайных значениях.
func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	exts := []string{"mp3", "bin", "M4A", "ogg", "wav", "flac"}

	for i := 0; i < 1000; i++ {
		var b [8]byte
		for j := range b {
			b[j] = byte(r.UintN(256))
		}
		id := IDFromBytes(b)
		exp := time.Unix(int64(r.Uint32()), int64(r.UintN(1_000_000_000)))
		ext := exts[r.IntN(len(exts))]

		name, err := Encode(id, exp, ext)
		if err != nil {
			t.Fatalf("Encode(%s, %v, %s): %v", id, exp, ext, err)
		}

		parts, ok := Decode(name)
		if !ok {
			t.Fatalf("Decode(%q) не распознал имя", name)
		}
		if parts.ID != id {
			t.Errorf("ID: хотели %s, получили %s", id, parts.ID)
		}
		if !parts.ExpiresAt.Equal(exp.Truncate(time.Second)) {
			t.Errorf("ExpiresAt: хотели %v, получили %v", exp.Truncate(time.Second), parts.ExpiresAt)
		}
		if parts.Ext != ext {
			t.Errorf("Ext: хотели %s, получили %s", ext, parts.Ext)
		}
	}
}

func TestDecode_NonMatching(t *testing.T) {
	names := []string{
		"",
		".",
		"readme.txt",
		".gitkeep",
		"0123456789abcdef6712f0c0",
		"0123456789abcdef6712f0c0.",
		"0123456789abcdef6712f0c0.mp3.tmp",
		"0123456789ABCDEF6712f0c0.mp3",
		"0123456789abcdef6712f0c.mp3",
		"0123456789abcdef6712f0c0a.mp3",
		"0123456789abcdef6712f0c0.mp 3",
		"0123456789abcdef6712f0c0.aaaaaaaaaaaaaaaaa",
		"photo_admin_20260221150405_a1b2c3d4.jpg",
		"😀😀😀😀😀😀😀😀😀😀😀😀.mp3",
	}

	for _, name := range names {
		if parts, ok := Decode(name); ok {
			t.Errorf("Decode(%q) = %+v, ожидался отказ", name, parts)
		}
	}
}

func TestExtensionFromName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"song.mp3", "mp3"},
		{"archive.tar.gz", "gz"},
		{"Track.FLAC", "FLAC"},
		{"noext", "bin"},
		{"trailingdot.", "bin"},
		{"", "bin"},
		{"weird.m p3", "bin"},
		{"../../etc/passwd", "bin"},
		{"file.aaaaaaaaaaaaaaaaa", "bin"},
		{".hidden", "hidden"},
	}

	for _, tt := range tests {
		if got := ExtensionFromName(tt.in); got != tt.want {
			t.Errorf("ExtensionFromName(%q): хотели %q, получили %q", tt.in, tt.want, got)
		}
	}
}

func TestHexCodec_ImplementsNameCodec(t *testing.T) {
	var c NameCodec = HexCodec{}

	name, err := c.Encode("0123456789abcdef", time.Unix(1700000000, 0), "mp3")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, ok := c.Decode(name); !ok {
		t.Errorf("Decode(%q) не распознал имя", name)
	}
}
