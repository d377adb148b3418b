package media

import (
	"encoding/base64"
	"fmt"
	"strings"

	"my-chat-backend/errors"
)

// DecodeDataURL accepts "data:<type>;base64,<payload>" or a bare base64 payload.
// The declared type is ignored, content is sniffed on upload.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "data:") {
		header, payload, found := strings.Cut(s, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: image must be a base64 data URL", errors.ErrInvalidArgument)
		}
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: image is not valid base64", errors.ErrInvalidArgument)
	}
	return data, nil
}
