package memory

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

func newOpaqueToken(bytesLen int) (string, error) {
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", domain.ErrRandomFailed(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
