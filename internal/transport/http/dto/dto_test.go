package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

func TestRequestDeletionRequest_Validate(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
		code  string
	}{
		{name: "valid", email: "  ada@example.com ", want: "ada@example.com"},
		{name: "malformed passes through", email: " not-an-email ", want: "not-an-email"},
		{name: "missing", email: "", code: "missing_field"},
		{name: "blank", email: "   ", code: "missing_field"},
		{name: "too long", email: strings.Repeat("a", 321), code: "invalid_field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := RequestDeletionRequest{Email: tt.email}
			err := req.Validate()
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, req.Email)
				return
			}
			require.Error(t, err)
			assert.True(t, domain.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestValidate_ReportsJSONFieldName(t *testing.T) {
	req := RequestDeletionRequest{Email: strings.Repeat("a", 321)}
	err := req.Validate()

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "email", de.Meta["field"])
	assert.Contains(t, de.Meta["reason"], "320")
}
