package util

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/dixieflatline76/Jitter/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper implements http.RoundTripper
type MockRoundTripper struct {
	StatusCode int
	Body       string
	Err        error
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &http.Response{
		StatusCode: m.StatusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.Body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func TestCheckForUpdates(t *testing.T) {
	originalVersion := config.AppVersion
	defer func() { config.AppVersion = originalVersion }()

	tests := []struct {
		name            string
		currentVersion  string
		responseBody    string
		statusCode      int
		expectUpdate    bool
		expectError     bool
		expectedVersion string
	}{
		{
			name:            "Update Available",
			currentVersion:  "v0.3.0",
			responseBody:    `{"tag_name": "v0.4.0", "html_url": "http://release"}`,
			statusCode:      200,
			expectUpdate:    true,
			expectedVersion: "v0.4.0",
		},
		{
			name:            "Same Version Without Prefix",
			currentVersion:  "0.4.0",
			responseBody:    `{"tag_name": "0.4.0", "html_url": "http://release"}`,
			statusCode:      200,
			expectedVersion: "v0.4.0",
		},
		{
			name:            "Newer Local Version",
			currentVersion:  "v1.0.0",
			responseBody:    `{"tag_name": "v0.4.0"}`,
			statusCode:      200,
			expectedVersion: "v0.4.0",
		},
		{
			name:           "Garbage Tag",
			currentVersion: "v1.0.0",
			responseBody:   `{"tag_name": "nightly"}`,
			statusCode:     200,
			expectError:    true,
		},
		{
			name:           "API Error",
			currentVersion: "v1.0.0",
			responseBody:   `{"message": "Not Found"}`,
			statusCode:     404,
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config.AppVersion = tt.currentVersion
			client := &http.Client{Transport: &MockRoundTripper{StatusCode: tt.statusCode, Body: tt.responseBody}}

			result, err := CheckForUpdates(context.Background(), client)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectUpdate, result.UpdateAvailable)
			assert.Equal(t, tt.expectedVersion, result.LatestVersion)
		})
	}
}
