package discovery

import (
	"math"
	"testing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]float64
		title     string
		result    serpResult
		want      float64
	}{
		{
			name:   "exact trusted with slug",
			title:  "Đấu Phá Thương Khung",
			result: serpResult{URL: "https://metruyencv.com/truyen/dau-pha-thuong-khung", Title: "Đấu Phá Thương Khung"},
			want:   0.98,
		},
		{
			name:   "exact untrusted halves",
			title:  "Phàm Nhân Tu Tiên",
			result: serpResult{URL: "https://example.org/x", Title: "Phàm Nhân Tu Tiên"},
			want:   0.225,
		},
		{
			name:   "verbose title penalty",
			title:  "Ma Đạo",
			result: serpResult{URL: "https://wikidich.com/truyen/ma-dao-to-su", Title: "Ma Đạo Tổ Sư bản dịch hoàn chỉnh"},
			want:   0.4145,
		},
		{
			name:   "off topic penalty",
			title:  "Naruto",
			result: serpResult{URL: "https://truyenyy.vip/truyen/naruto-dong-nhan", Title: "Naruto đồng nhân hay"},
			want:   0.1486,
		},
		{
			name:      "override clamps to one",
			overrides: map[string]float64{"MetruyenCV.com": 0.9},
			title:     "Đấu Phá Thương Khung",
			result:    serpResult{URL: "https://metruyencv.com/truyen/dau-pha-thuong-khung", Title: "Đấu Phá Thương Khung"},
			want:      1,
		},
		{
			name:   "stop words only",
			title:  "Truyện Full",
			result: serpResult{URL: "https://truyencv.vn/x", Title: "Truyện Full"},
			want:   0.30,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newDomainTable(tt.overrides).score(tt.title, tt.result)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRankKeepsSERPOrderOnTies(t *testing.T) {
	e := NewEngine(Config{}, nil)
	results := []serpResult{
		{URL: "https://example.org/one", Title: "Phàm Nhân Tu Tiên"},
		{URL: "https://example.org/two", Title: "Phàm Nhân Tu Tiên"},
		{URL: "https://metruyencv.com/x", Title: "Phàm Nhân Tu Tiên"},
	}
	ranked := e.rank("Phàm Nhân Tu Tiên", results)
	if ranked[0].URL != "https://metruyencv.com/x" || ranked[1].URL != "https://example.org/one" || ranked[2].URL != "https://example.org/two" {
		t.Fatalf("unexpected order: %+v", ranked)
	}
	if got := aboveThreshold(ranked, 0.5); len(got) != 1 {
		t.Fatalf("expected one result above 0.5, got %d", len(got))
	}
}

func TestDomainOverridesAppendUnknownHosts(t *testing.T) {
	table := newDomainTable(map[string]float64{"zeta.example": 0.2, "alpha.example": 0.1, "wikidich.com": 0.05})
	if d, ok := table.match("https://WIKIDICH.com/truyen"); !ok || d.Weight != 0.05 {
		t.Fatalf("expected overridden wikidich weight, got %+v ok=%v", d, ok)
	}
	n := len(table)
	if table[n-2].Host != "alpha.example" || table[n-1].Host != "zeta.example" {
		t.Fatalf("expected sorted appended hosts, got %v", table[n-2:])
	}
	if got := table.sourceName("https://alpha.example/book"); got != "alpha.example" {
		t.Fatalf("unexpected source name %q", got)
	}
	if got := table.sourceName("https://nowhere.test/"); got != "Unknown" {
		t.Fatalf("unexpected source name %q", got)
	}
	if got := table.sourceName("https://truyen.tangthuvien.vn/doc-truyen/x"); got != "TangThuVien" {
		t.Fatalf("unexpected source name %q", got)
	}
}
