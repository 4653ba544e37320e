package status

import (
	"fmt"

	"epubsort/internal/discovery"
)

// Reader-facing statuses. Ongoing is written exactly as shown to Vietnamese
// readers and becomes an output folder name.
const (
	Full    = "Full"
	Ongoing = "Đang ra"
	Unknown = "Unknown"
)

// Decision is the resolved reader status.
type Decision struct {
	Status     string
	Confidence float64
	Reason     string
}

// Resolve compares localChapters with the chapter count in web. A nil web
// result or a non-positive count on either side yields Unknown.
func Resolve(localChapters int, web *discovery.Metadata) Decision {
	if web == nil {
		return Decision{Status: Unknown, Confidence: 0, Reason: "No web data"}
	}
	webChapters := web.ChapterCount
	if webChapters <= 0 || localChapters <= 0 {
		return Decision{
			Status:     Unknown,
			Confidence: 0,
			Reason:     fmt.Sprintf("Invalid chapter count (local=%d, web=%d)", localChapters, webChapters),
		}
	}
	if localChapters >= webChapters {
		return Decision{
			Status:     Full,
			Confidence: 0.9,
			Reason:     fmt.Sprintf("Local chapters (%d) >= web chapters (%d)", localChapters, webChapters),
		}
	}
	return Decision{
		Status:     Ongoing,
		Confidence: 0.9,
		Reason:     fmt.Sprintf("Local chapters (%d) < web chapters (%d)", localChapters, webChapters),
	}
}
