package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		requireHTTPS bool
		wantMessage  string
	}{
		{name: "https", raw: "https://nominatim.openstreetmap.org"},
		{name: "http with port and path", raw: "http://localhost:8088/nominatim"},
		{name: "https required", raw: "https://geo.example", requireHTTPS: true},
		{name: "no scheme", raw: "nominatim.openstreetmap.org", wantMessage: "must include a scheme"},
		{name: "ftp", raw: "ftp://geo.example", wantMessage: "must use http or https"},
		{name: "http when https required", raw: "http://geo.example", requireHTTPS: true, wantMessage: "must use https"},
		{name: "no host", raw: "https://", wantMessage: "must include a host"},
		{name: "query", raw: "https://geo.example?key=1", wantMessage: "must not contain a query or fragment"},
		{name: "malformed", raw: "ht!tp://geo.example", wantMessage: "must be a valid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := BaseURL("base_url", tt.raw, tt.requireHTTPS)
			if tt.wantMessage == "" {
				require.NoError(t, err)
				return
			}
			var verr Error
			require.ErrorAs(t, err, &verr)
			require.Equal(t, "base_url", verr.Field)
			require.Equal(t, tt.wantMessage, verr.Message)
		})
	}
}
