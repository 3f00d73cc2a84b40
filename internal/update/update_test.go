package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func releaseServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckURLNewerRelease(t *testing.T) {
	srv := releaseServer(t, http.StatusOK, `{"tag_name":"v1.3.0","html_url":"https://example.com/r/1.3.0"}`)

	res, err := CheckURL(context.Background(), srv.Client(), srv.URL, "v1.2.0")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "1.3.0", res.LatestVersion)
	assert.Equal(t, "https://example.com/r/1.3.0", res.URL)
}

func TestCheckURLAlreadyLatest(t *testing.T) {
	srv := releaseServer(t, http.StatusOK, `{"tag_name":"v1.2.0"}`)

	res, err := CheckURL(context.Background(), srv.Client(), srv.URL, "1.2.0")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCheckURLErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{"message":"Not Found"}`},
		{"malformed", http.StatusOK, `{"tag_name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := releaseServer(t, tt.status, tt.body)
			res, err := CheckURL(context.Background(), srv.Client(), srv.URL, "dev")
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}
}
