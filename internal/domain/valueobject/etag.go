package valueobject

import (
	"fmt"
	"time"
)

// NewETag derives a strong validator from an asset's size and
// modification time. Sources with authoritative hashes (S3) keep
// their own value instead.
func NewETag(size int64, modTime time.Time) string {
	return fmt.Sprintf("\"%x-%x\"", modTime.UnixNano(), size)
}
