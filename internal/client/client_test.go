package client

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocortexio/gcgit/internal/modules"
)

// newTestClient starts a TLS test server with keep-alives disabled and
// returns a client pointed at it. Disabling keep-alives prevents flaky
// parallel tests when servers close while sharing transports.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewTLSServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)

	return &Client{
		httpClient: server.Client(),
		fqdn:       strings.TrimPrefix(server.URL, "https://"),
		apiKey:     "test-api-key",
		apiKeyID:   "42",
		basePath:   "/public_api/v1",
	}
}

func TestClient_AuthHeaders(t *testing.T) {
	t.Parallel()

	var gotAuthID, gotAuth, gotAccept, gotUA, gotContentType string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthID = r.Header.Get("x-xdr-auth-id")
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := c.postJSON(context.Background(), c.endpointURL("dashboards/get"), map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, "42", gotAuthID)
	assert.Equal(t, "test-api-key", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, UserAgent, gotUA)
	assert.Equal(t, "application/json", gotContentType)
}

func TestClient_EndpointURL(t *testing.T) {
	t.Parallel()

	c := &Client{fqdn: "tenant.xdr.us.paloaltonetworks.com", basePath: "/public_api/v1"}

	tests := []struct {
		name     string
		endpoint string
		expected string
	}{
		{
			name:     "plain endpoint",
			endpoint: "dashboards/get",
			expected: "https://tenant.xdr.us.paloaltonetworks.com/public_api/v1/dashboards/get",
		},
		{
			name:     "endpoint stepping outside the versioned prefix",
			endpoint: "../xql_library/get",
			expected: "https://tenant.xdr.us.paloaltonetworks.com/public_api/xql_library/get",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, c.endpointURL(tt.endpoint))
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))

	body, err := c.get(context.Background(), c.endpointURL("dashboards/get"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ClientErrorsArePermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.get(context.Background(), c.endpointURL("dashboards/get"))
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestClient_TestConnectivity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		wantErr    string
	}{
		{name: "healthy endpoint", statusCode: http.StatusOK},
		{name: "reachable but erroring endpoint", statusCode: http.StatusNotFound},
		{name: "bad credentials", statusCode: http.StatusUnauthorized, wantErr: "authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(`{}`))
			}))

			err := c.TestConnectivity(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPullContentType_JSONCollection(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"reply":[{"rule_id":5,"name":"x","extra":"field"}]}`))
	}))

	ct := modules.ContentType{
		Name:         "correlation_searches",
		GetEndpoint:  "correlations/get",
		Strategy:     modules.JSONCollection(),
		IDField:      "rule_id",
		RequestBody:  map[string]any{"request_data": map[string]any{}},
		ResponsePath: "reply",
	}

	objects, err := c.PullContentType(context.Background(), ct)
	require.NoError(t, err)
	require.Len(t, objects, 1)

	obj := objects[0]
	assert.Equal(t, "5", obj.ID)
	require.NotNil(t, obj.Name)
	assert.Equal(t, "x", *obj.Name)
	assert.Equal(t, "correlation_searches", obj.ContentType)
	assert.Contains(t, obj.Content, "rule_id")
	assert.Contains(t, obj.Content, "extra")
	assert.NotContains(t, obj.Content, "name", "reserved keys are hoisted out of content")
}

func TestPullContentType_JSONCollection_RootArrayGET(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`[{"id":"p1","name":"policy one"}]`))
	}))

	ct := modules.ContentType{
		Name:        "policies",
		GetEndpoint: "policies",
		Strategy:    modules.JSONCollection(),
		IDField:     "id",
	}

	objects, err := c.PullContentType(context.Background(), ct)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "p1", objects[0].ID)
}

func TestPullContentType_EnvelopeMismatchIsWarningNotFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "path missing", body: `{"something_else": []}`},
		{name: "path present but not an array", body: `{"reply": {"status": "error"}}`},
		{name: "root not an array without path", body: `{"status": "error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))

			ct := modules.ContentType{
				Name:        "dashboards",
				GetEndpoint: "dashboards/get",
				Strategy:    modules.JSONCollection(),
				IDField:     "id",
			}
			if tt.name != "root not an array without path" {
				ct.ResponsePath = "reply"
			}

			objects, err := c.PullContentType(context.Background(), ct)
			require.NoError(t, err, "envelope mismatch must degrade to empty, not fail")
			assert.Empty(t, objects)
		})
	}
}

func TestPullContentType_PaginatedTermination(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))

		switch r.URL.Query().Get("page") {
		case "1", "2":
			_, _ = w.Write([]byte(`{"data":[{"id":"a"},{"id":"b"}]}`))
		default:
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	}))

	ct := modules.ContentType{
		Name:         "applications",
		GetEndpoint:  "applications",
		Strategy:     modules.Paginated("page", "pageSize", 100),
		IDField:      "id",
		ResponsePath: "data",
	}

	objects, err := c.PullContentType(context.Background(), ct)
	require.NoError(t, err)
	assert.Len(t, objects, 4, "2 items on pages 1-2 plus the empty page 3")
	assert.Equal(t, int32(3), calls.Load(), "exactly three calls: two full pages and one empty")
}

func TestPullContentType_OffsetPaginatedTermination(t *testing.T) {
	t.Parallel()

	var offsets []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		if offset == "0" {
			_, _ = w.Write([]byte(`{"rules":[{"id":"r1"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"rules":[]}`))
	}))

	ct := modules.ContentType{
		Name:         "rules",
		GetEndpoint:  "rules",
		Strategy:     modules.OffsetPaginated("offset", "limit", 100),
		IDField:      "id",
		ResponsePath: "rules",
	}

	objects, err := c.PullContentType(context.Background(), ct)
	require.NoError(t, err)
	assert.Len(t, objects, 1)
	assert.Equal(t, []string{"0", "100"}, offsets)
}

func TestPullContentType_PaginationCeiling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		strategy modules.PullStrategy
	}{
		{name: "page number pagination", strategy: modules.Paginated("page", "pageSize", 100)},
		{name: "offset pagination", strategy: modules.OffsetPaginated("offset", "limit", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				_, _ = w.Write([]byte(`{"data":[{"id":"a"}]}`))
			}))

			ct := modules.ContentType{
				Name:         "applications",
				GetEndpoint:  "applications",
				Strategy:     tt.strategy,
				IDField:      "id",
				ResponsePath: "data",
			}

			_, err := c.PullContentType(context.Background(), ct)
			require.Error(t, err, "an endpoint that never returns an empty page must not loop forever")
			assert.Contains(t, err.Error(), "exceeded 1000 pages")
			assert.Equal(t, int32(1000), calls.Load(), "the ceiling stops the pull after the last allowed page")
		})
	}
}

func TestPullContentType_ScriptCode(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "get_scripts"):
			_, _ = w.Write([]byte(`{"reply":{"scripts":[
				{"name":"cleanup","script_uid":"u1","description":"removes stale data"},
				{"name":"broken","script_uid":"u2"}
			]}}`))
		case strings.HasSuffix(r.URL.Path, "get_script_code"):
			body := map[string]any{}
			require.NoError(t, jsonDecode(r, &body))
			requestData, _ := body["request_data"].(map[string]any)
			if requestData["script_uid"] == "u2" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"reply":"line1\\nline2"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ct := modules.ContentType{
		Name:        "scripts",
		GetEndpoint: "scripts/get_scripts",
		Strategy: modules.ScriptCode(
			"scripts/get_scripts", "scripts/get_script_code", "reply.scripts", "script_uid"),
		IDField: "script_uid",
	}

	objects, err := c.PullContentType(context.Background(), ct)
	require.NoError(t, err)
	require.Len(t, objects, 1, "the failing script is skipped with a warning")

	obj := objects[0]
	assert.Equal(t, "u1", obj.ID)
	require.NotNil(t, obj.Name)
	assert.Equal(t, "cleanup", *obj.Name)
	assert.Equal(t, "removes stale data", obj.Description)
	assert.Equal(t, "line1\nline2", obj.Content["code"], "escaped newlines are unescaped")
	assert.NotContains(t, obj.Content, "script_uid")
}

func TestPullContentType_ZipArtifact(t *testing.T) {
	t.Parallel()

	zipBytes := buildSingleEntryZip(t, "playbook.yaml", "steps: 3\nauthor: remote\nname: embedded name")

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "playbooks/get"):
			_, _ = w.Write([]byte(`{"reply":{"playbooks":[
				{"name":"My Playbook","id":"pb1","created_by":"alice","author":"record"}
			]}}`))
		case strings.HasSuffix(r.URL.Path, "playbooks/download"):
			body := map[string]any{}
			require.NoError(t, jsonDecode(r, &body))
			requestData, _ := body["request_data"].(map[string]any)
			filters, _ := requestData["filters"].([]any)
			require.Len(t, filters, 1)
			filter, _ := filters[0].(map[string]any)
			assert.Equal(t, "name", filter["field"])
			assert.Equal(t, "My Playbook", filter["value"])
			_, _ = w.Write(zipBytes)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ct := modules.ContentType{
		Name: "playbooks",
		Strategy: modules.ZipArtifact(
			"playbooks/get", "playbooks/download", "reply.playbooks", "name"),
		IDField: "id",
	}

	objects, err := c.PullContentType(context.Background(), ct)
	require.NoError(t, err)
	require.Len(t, objects, 1)

	obj := objects[0]
	assert.Equal(t, "pb1", obj.ID)
	require.NotNil(t, obj.Name)
	assert.Equal(t, "My Playbook", *obj.Name)
	assert.Equal(t, "alice", obj.Metadata.CreatedBy)
	assert.Equal(t, 3, asInt(t, obj.Content["steps"]), "embedded YAML fields are merged")
	assert.Equal(t, "record", obj.Content["author"], "record fields win on collision")
	assert.Equal(t, "pb1", obj.Content["id"], "identity field is fixed to the resolved id")
}

func TestPullContentType_ZipArtifact_DownloadFailureIsWarning(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "playbooks/get") {
			_, _ = w.Write([]byte(`{"reply":{"playbooks":[{"name":"gone","id":"pb9"}]}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	ct := modules.ContentType{
		Name: "playbooks",
		Strategy: modules.ZipArtifact(
			"playbooks/get", "playbooks/download", "reply.playbooks", "name"),
		IDField: "id",
	}

	objects, err := c.PullContentType(context.Background(), ct)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestPullContentType_ListPathFailureIsFatalForTwoPhase(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))

	ct := modules.ContentType{
		Name: "scripts",
		Strategy: modules.ScriptCode(
			"scripts/get_scripts", "scripts/get_script_code", "reply.scripts", "script_uid"),
		IDField: "script_uid",
	}

	_, err := c.PullContentType(context.Background(), ct)
	require.Error(t, err, "the controlling list call aborts the content type")
	assert.Contains(t, err.Error(), "reply.scripts")
}

func TestGetObjectByID(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"reply":[{"rule_id":5,"name":"x"},{"rule_id":6,"name":"y"}]}`))
	}))

	ct := modules.ContentType{
		Name:         "correlation_searches",
		GetEndpoint:  "correlations/get",
		Strategy:     modules.JSONCollection(),
		IDField:      "rule_id",
		RequestBody:  map[string]any{"request_data": map[string]any{}},
		ResponsePath: "reply",
	}

	obj, err := c.GetObjectByID(context.Background(), ct, "6")
	require.NoError(t, err)
	assert.Equal(t, "6", obj.ID)

	_, err = c.GetObjectByID(context.Background(), ct, "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func buildSingleEntryZip(t *testing.T, name, content string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func jsonDecode(r *http.Request, into *map[string]any) error {
	return json.NewDecoder(r.Body).Decode(into)
}

func asInt(t *testing.T, value any) int {
	t.Helper()
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		t.Fatalf("unexpected numeric type %T", value)
		return 0
	}
}
