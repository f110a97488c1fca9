package evidence

import (
	"path"
	"strings"
)

// MIMEType infers an image MIME type from the reference's extension only.
// Query strings and fragments are ignored; anything that is not .png or .gif is
// assumed to be JPEG.
func MIMEType(ref string) string {
	ext := strings.ToLower(path.Ext(stripQuery(ref)))
	switch ext {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
