package azure

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/elsai-console/internal/backend"
)

func writeDoc(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sample.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4 test"), 0o600))
	return p
}

// fakeService answers the analyze call with 202 and reports "running" pendingPolls times before finalBody.
func fakeService(t *testing.T, analyzePath string, pendingPolls int32, finalBody string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"code":"401","message":"Access denied due to invalid subscription key"}}`)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == analyzePath:
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "%PDF-1.4 test", string(body))
			w.Header().Set("Operation-Location", srv.URL+"/operations/42")
			w.WriteHeader(http.StatusAccepted)
		case r.Method == http.MethodGet && r.URL.Path == "/operations/42":
			if polls.Add(1) <= pendingPolls {
				_, _ = io.WriteString(w, `{"status":"running"}`)
				return
			}
			_, _ = io.WriteString(w, finalBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func testConfig(endpoint string) Config {
	return Config{Endpoint: endpoint + "/", Key: "secret", PollInterval: 5 * time.Millisecond, PollTimeout: 2 * time.Second}
}

func TestDocumentIntelligenceExtractText(t *testing.T) {
	srv, polls := fakeService(t, "/formrecognizer/documentModels/prebuilt-read:analyze", 2,
		`{"status":"succeeded","analyzeResult":{"content":"Invoice 42\r\nTotal: 10.00  \n\n\n\nThanks","pages":[{},{}]}}`)

	di, err := NewDocumentIntelligence(testConfig(srv.URL), nil)
	require.NoError(t, err)

	doc, err := di.ExtractText(context.Background(), writeDoc(t))
	require.NoError(t, err)
	assert.Equal(t, "Invoice 42\nTotal: 10.00\n\nThanks", doc.Text)
	assert.Equal(t, 2, doc.Pages)
	assert.Equal(t, int32(3), polls.Load())
}

func TestComputerVisionExtractText(t *testing.T) {
	srv, _ := fakeService(t, "/vision/v3.2/read/analyze", 1,
		`{"status":"succeeded","analyzeResult":{"readResults":[{"page":1,"lines":[{"text":"Hello"},{"text":"World"}]},{"page":2,"lines":[{"text":"Page two"}]}]}}`)

	cv, err := NewComputerVision(testConfig(srv.URL), nil)
	require.NoError(t, err)

	doc, err := cv.ExtractText(context.Background(), writeDoc(t))
	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld\n\nPage two", doc.Text)
	assert.Equal(t, 2, doc.Pages)
}

func TestOperationFailed(t *testing.T) {
	srv, _ := fakeService(t, "/vision/v3.2/read/analyze", 0,
		`{"status":"failed","error":{"code":"InvalidImage","message":"The file is corrupted"}}`)

	cv, err := NewComputerVision(testConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = cv.ExtractText(context.Background(), writeDoc(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The file is corrupted")
}

func TestOperationTimesOut(t *testing.T) {
	srv, _ := fakeService(t, "/vision/v3.2/read/analyze", 1000, `{}`)
	cfg := testConfig(srv.URL)
	cfg.PollTimeout = 30 * time.Millisecond

	cv, err := NewComputerVision(cfg, nil)
	require.NoError(t, err)

	_, err = cv.ExtractText(context.Background(), writeDoc(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not complete")
}

func TestUnexpectedResultShape(t *testing.T) {
	srv, _ := fakeService(t, "/formrecognizer/documentModels/prebuilt-read:analyze", 0,
		`{"status":"succeeded","analyzeResult":{"pages":[]}}`)

	di, err := NewDocumentIntelligence(testConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = di.ExtractText(context.Background(), writeDoc(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected response shape")
}

func TestInvalidKeySurfacesStatus(t *testing.T) {
	srv, _ := fakeService(t, "/vision/v3.2/read/analyze", 0, `{}`)
	cfg := testConfig(srv.URL)
	cfg.Key = "wrong"

	cv, err := NewComputerVision(cfg, nil)
	require.NoError(t, err)

	_, err = cv.ExtractText(context.Background(), writeDoc(t))
	var se *backend.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Contains(t, err.Error(), "invalid subscription key")
}

func TestConfigValidation(t *testing.T) {
	_, err := NewDocumentIntelligence(Config{Key: "k"}, nil)
	assert.Error(t, err)
	_, err = NewComputerVision(Config{Endpoint: "example.com", Key: "k"}, nil)
	assert.Error(t, err)
	_, err = NewComputerVision(Config{Endpoint: "https://example.com"}, nil)
	assert.Error(t, err)
}
