package textutil

import (
	"strings"
	"testing"
)

func TestFold(t *testing.T) {
	tests := map[string]string{
		"Đấu Phá Thương Khung": "Dau Pha Thuong Khung",
		"đường":                "duong",
		"ngoại truyện":         "ngoai truyen",
		"plain ascii":          "plain ascii",
	}
	for in, want := range tests {
		if got := Fold(in); got != want {
			t.Fatalf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeForMatch(t *testing.T) {
	tests := map[string]string{
		"  Võ Luyện  Đỉnh!! ":        "vo luyen dinh",
		"Đấu Phá - Thương Khung (Full)": "dau pha thuong khung full",
		"":                            "",
		"***":                         "",
	}
	for in, want := range tests {
		if got := NormalizeForMatch(in); got != want {
			t.Fatalf("NormalizeForMatch(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Võ Luyện Đỉnh", "Võ-Luyện-Đỉnh"},
		{`a<b>c:d"e/f\g|h?i*j`, "a-b-c-d-e-f-g-h-i-j"},
		{"  ..Title..  ", "Title"},
		{"A -  B", "A-B"},
		{"", "unnamed"},
		{"...", "unnamed"},
	}
	for _, tt := range tests {
		if got := SafeFileName(tt.in); got != tt.want {
			t.Fatalf("SafeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeFileNameCapsLength(t *testing.T) {
	long := strings.Repeat("ắ", 199) + " tail"
	got := SafeFileName(long)
	if n := len([]rune(got)); n > 200 {
		t.Fatalf("expected at most 200 runes, got %d", n)
	}
	if strings.HasSuffix(got, "-") {
		t.Fatalf("expected trailing dash trimmed, got %q", got)
	}
}

func TestTokenOverlap(t *testing.T) {
	stop := map[string]struct{}{"truyen": {}, "full": {}}
	a := TokenSet("truyen vo luyen dinh full", stop)
	b := TokenSet("vo luyen dinh chuong", stop)
	if len(a) != 3 {
		t.Fatalf("expected stop words removed, got %v", a)
	}
	if got := OverlapRatio(a, b); got != 0.75 {
		t.Fatalf("OverlapRatio = %v, want 0.75", got)
	}
	if got := OverlapRatio(a, map[string]struct{}{}); got != 0 {
		t.Fatalf("expected 0 for empty set, got %v", got)
	}
}
