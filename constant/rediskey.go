package constant

import "fmt"

const (
	BasePrefix = "geolink:"
	Separator  = ":"
)

// Redis key templates
const (
	LinkSnapshot = BasePrefix + "link" + Separator + "%s" // geolink:link:<linkID>
)

// Click event stream layout
const (
	ClickStream      = BasePrefix + "clicks" + Separator + "events"
	ClickDeadLetter  = BasePrefix + "clicks" + Separator + "dead_letter"
	ClickStreamGroup = "click-processor"
)

// LinkSnapshotTTL is the default cache TTL for link snapshots, in seconds.
const LinkSnapshotTTL = 86400

// GetLinkSnapshotKey builds the cache key for a link snapshot.
func GetLinkSnapshotKey(linkID string) string {
	return fmt.Sprintf(LinkSnapshot, linkID)
}
