package discovery

import (
	"maps"
	"slices"
	"strings"
)

// Domain is a trusted novel site. Weight seeds the match score; Name is the
// display name stored as the metadata source.
type Domain struct {
	Host   string
	Weight float64
	Name   string
}

// DefaultDomains returns the trusted sites in match order. Order matters:
// the first host contained in a URL wins.
func DefaultDomains() []Domain {
	return []Domain{
		{Host: "metruyencv.com", Weight: 0.45, Name: "Metruyencv"},
		{Host: "metruyenchu.com", Weight: 0.45, Name: "Metruyenchu"},
		{Host: "wikidich.com", Weight: 0.40, Name: "WikiDich"},
		{Host: "bachngocsach.com.vn", Weight: 0.40, Name: "BachNgocSach"},
		{Host: "tangthuvien.vn", Weight: 0.42, Name: "TangThuVien"},
		{Host: "truyen.tangthuvien.vn", Weight: 0.42, Name: "TangThuVien"},
		{Host: "truyenyy.vip", Weight: 0.30, Name: "TruyenYY"},
		{Host: "truyenchu.vn", Weight: 0.32, Name: "TruyenChu"},
		{Host: "truyenchu.net", Weight: 0.32, Name: "TruyenChu"},
		{Host: "truyencv.vn", Weight: 0.30, Name: "TruyenCV"},
	}
}

// domainTable resolves URLs to trusted domains.
type domainTable []Domain

// newDomainTable applies weight overrides to the defaults. Hosts that are not
// already trusted are appended in sorted order and use the host as the name.
func newDomainTable(overrides map[string]float64) domainTable {
	table := domainTable(DefaultDomains())
	normalized := make(map[string]float64, len(overrides))
	for host, weight := range overrides {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			normalized[host] = weight
		}
	}
	for i := range table {
		if weight, ok := normalized[table[i].Host]; ok {
			table[i].Weight = weight
			delete(normalized, table[i].Host)
		}
	}
	for _, host := range slices.Sorted(maps.Keys(normalized)) {
		table = append(table, Domain{Host: host, Weight: normalized[host], Name: host})
	}
	return table
}

// match returns the first domain whose host appears in the lowercased URL.
func (t domainTable) match(rawURL string) (Domain, bool) {
	lowered := strings.ToLower(rawURL)
	for _, d := range t {
		if strings.Contains(lowered, d.Host) {
			return d, true
		}
	}
	return Domain{}, false
}

// sourceName returns the display name for the URL, or "Unknown".
func (t domainTable) sourceName(rawURL string) string {
	if d, ok := t.match(rawURL); ok && d.Name != "" {
		return d.Name
	}
	return unknownValue
}
