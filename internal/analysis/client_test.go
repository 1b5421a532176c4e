package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Analyze(t *testing.T) {
	var got analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze-issue", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issue_type":"road damage","severity":"high","confidence":91.37}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL+"/", time.Second)
	analysis, err := client.Analyze(context.Background(), "Pothole", "Deep hole near the crossing")

	require.NoError(t, err)
	assert.Equal(t, "Pothole Deep hole near the crossing", got.Text)
	assert.Equal(t, "road damage", analysis.IncidentType)
	assert.InDelta(t, 91.37, analysis.Confidence, 0.001)
	assert.Equal(t, "road damage", analysis.TextAnalysis.IssueType)
	assert.Equal(t, "high", analysis.TextAnalysis.Severity)
	assert.InDelta(t, 91.37, analysis.TextAnalysis.Confidence, 0.001)
}

func TestClient_AnalyzeErrors(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"detail":"model not loaded"}`, wantErr: "status 500"},
		{name: "malformed body", status: http.StatusOK, body: `not json`, wantErr: "failed to decode"},
		{name: "empty classification", status: http.StatusOK, body: `{"severity":"low"}`, wantErr: "no issue type"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			_, err := NewClient(srv.URL, time.Second).Analyze(context.Background(), "t", "d")

			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestClient_AnalyzeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	_, err := NewClient(srv.URL, 50*time.Millisecond).Analyze(context.Background(), "t", "d")

	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to send analysis request")
}
