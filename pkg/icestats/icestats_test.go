package icestats

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected Stats
		wantErr  bool
	}{
		{
			name:     "single source object",
			input:    `{"icestats":{"admin":"root@localhost","source":{"listeners":3,"listener_peak":12,"server_name":"radio"}}}`,
			expected: Stats{Current: 3, Peak: 12},
		},
		{
			name:     "source array uses first mount",
			input:    `{"icestats":{"source":[{"listeners":7,"listener_peak":9},{"listeners":1,"listener_peak":1}]}}`,
			expected: Stats{Current: 7, Peak: 9},
		},
		{
			name:    "no source",
			input:   `{"icestats":{"admin":"root@localhost"}}`,
			wantErr: true,
		},
		{
			name:    "empty source array",
			input:   `{"icestats":{"source":[]}}`,
			wantErr: true,
		},
		{
			name:    "missing peak",
			input:   `{"icestats":{"source":{"listeners":3}}}`,
			wantErr: true,
		},
		{
			name:    "source is a string",
			input:   `{"icestats":{"source":"none"}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			input:   `<icestats/>`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats, err := Parse([]byte(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, stats)
		})
	}
}

func TestParse_NoStats(t *testing.T) {
	_, err := Parse([]byte(`{"icestats":{"source":{"listener_peak":1}}}`))
	assert.ErrorIs(t, err, ErrNoStats)
}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status-json.xsl", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"icestats":{"source":{"listeners":42,"listener_peak":64}}}`)
	}))
	defer server.Close()

	c := New(server.URL+"/status-json.xsl", 5*time.Second)
	stats, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Current: 42, Peak: 64}, stats)
}

func TestClient_FetchBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
}
