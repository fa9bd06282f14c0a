package cache

import "fmt"

// Key returns the cache key of one access decision
func Key(videoID, viewerID int64) string {
	return fmt.Sprintf("access:decision:%d:%d", videoID, viewerID)
}
