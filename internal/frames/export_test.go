package frames

import "github.com/alnah/go-meetsync/internal/video"

// Thumbnail exports thumbnail for testing.
func Thumbnail(im video.Image) video.Image { return thumbnail(im) }
