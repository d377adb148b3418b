package media

import "mime"

type MIME string

const (
	Unknown   MIME = "unknown"
	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWebP MIME = "image/webp"
)

var acceptedImages = []MIME{ImagePNG, ImageJPEG, ImageGIF, ImageWebP}

// Matches compares a detected media type, parameters included, with an expected one.
func Matches(detected string, expected MIME) bool {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return false
	}
	return mt == string(expected)
}

// AcceptedImage returns the accepted image type matching detected.
func AcceptedImage(detected string) (MIME, bool) {
	for _, m := range acceptedImages {
		if Matches(detected, m) {
			return m, true
		}
	}
	return Unknown, false
}
