package update

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `{
  "version": "1.2.0",
  "releaseDate": "2024-03-01T08:30:00",
  "downloadUrl": "https://cdn.example.com/packages/app-1.2.0.zip",
  "fileSize": 15728640,
  "checksum": "ABCDEF0123",
  "releaseNotes": ["Faster startup", "Fix crash on exit"],
  "minVersion": "1.0.0",
  "forceUpdate": true
}`

func TestManifestClientURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		opts    []ClientOption
		want    string
	}{
		{
			name:    "default path",
			baseURL: "https://bucket.example.com/FgccHelper",
			want:    "https://bucket.example.com/FgccHelper/versions/latest.json",
		},
		{
			name:    "trailing slash on base",
			baseURL: "https://bucket.example.com/app/",
			want:    "https://bucket.example.com/app/versions/latest.json",
		},
		{
			name:    "custom path",
			baseURL: "https://bucket.example.com",
			opts:    []ClientOption{WithManifestPath("/latest.json")},
			want:    "https://bucket.example.com/latest.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewManifestClient(tt.baseURL, tt.opts...)
			assert.Equal(t, tt.want, c.ManifestURL())
		})
	}
}

func TestFetchLatest_Success(t *testing.T) {
	var gotPath, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleManifest))
	}))
	defer server.Close()

	c := NewManifestClient(server.URL, WithUserAgent("upkeep-test"))
	m, err := c.FetchLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, "/versions/latest.json", gotPath)
	assert.Equal(t, "upkeep-test", gotUA)
	assert.Equal(t, "1.2.0", m.Version)
	assert.Equal(t, int64(15728640), m.FileSize)
	assert.Equal(t, "ABCDEF0123", m.Checksum)
	assert.Equal(t, []string{"Faster startup", "Fix crash on exit"}, m.ReleaseNotes)
	assert.Equal(t, "1.0.0", m.MinVersion)
	assert.True(t, m.ForceUpdate)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), m.ReleaseDate.Time)
}

func TestFetchLatest_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	m, err := NewManifestClient(server.URL).FetchLatest(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestFetchLatest_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus bool
		wantDecode bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantStatus: true},
		{name: "forbidden", status: http.StatusForbidden, body: "", wantStatus: true},
		{name: "malformed json", status: http.StatusOK, body: `{"version": `, wantDecode: true},
		{name: "missing download url", status: http.StatusOK, body: `{"version":"1.0.0"}`, wantDecode: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			m, err := NewManifestClient(server.URL).FetchLatest(context.Background())
			require.Error(t, err)
			assert.Nil(t, m)

			var netErr *NetworkError
			require.True(t, errors.As(err, &netErr), "expected *NetworkError, got %T", err)
			assert.Equal(t, tt.wantStatus, errors.Is(err, ErrUnexpectedStatus))
			assert.Equal(t, tt.wantDecode, errors.Is(err, ErrInvalidManifest))
		})
	}
}

func TestFetchLatest_UnparseableVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"latest","downloadUrl":"https://x/app.zip"}`))
	}))
	defer server.Close()

	m, err := NewManifestClient(server.URL).FetchLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "latest", m.Version)
	assert.False(t, IsUpdateAvailable("1.0.0", m.Version))
}

func TestFetchLatest_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewManifestClient(server.URL, WithTimeout(50*time.Millisecond))
	m, err := c.FetchLatest(context.Background())
	require.Error(t, err)
	assert.Nil(t, m)

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestFetchLatest_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewManifestClient(url).FetchLatest(context.Background())
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestManifestJSONRoundTrip(t *testing.T) {
	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(sampleManifest), &m))

	data, err := json.Marshal(&m)
	require.NoError(t, err)

	var again Manifest
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, m.Version, again.Version)
	assert.True(t, m.ReleaseDate.Equal(again.ReleaseDate.Time))
	assert.Equal(t, m.ReleaseNotes, again.ReleaseNotes)
	assert.Equal(t, m.ForceUpdate, again.ForceUpdate)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339 with zone", input: "2024-03-01T08:30:00+02:00", want: time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC)},
		{name: "no zone", input: "2024-03-01T08:30:00", want: time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)},
		{name: "fractional seconds without zone", input: "2024-03-01T08:30:00.1234567", want: time.Date(2024, 3, 1, 8, 30, 0, 123456700, time.UTC)},
		{name: "date only", input: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "empty", input: "", want: time.Time{}},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Time), "got %v, want %v", got.Time, tt.want)
		})
	}
}

func TestTimestampNullAndEmpty(t *testing.T) {
	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(`{"version":"1.0.0","releaseDate":null}`), &m))
	assert.True(t, m.ReleaseDate.IsZero())

	data, err := json.Marshal(m.ReleaseDate)
	require.NoError(t, err)
	assert.Equal(t, `""`, string(data))
}
