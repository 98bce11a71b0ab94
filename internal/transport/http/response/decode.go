package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// DecodeJSON decodes a JSON request body into dst.
// It rejects unknown fields and multiple JSON values.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if w != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidJSON(err)
	}

	// Disallow trailing data: {}{}
	if err := dec.Decode(&struct{}{}); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.ErrInvalidJSON(err)
	}
	return domain.ErrInvalidJSON(errors.New("multiple JSON values"))
}
