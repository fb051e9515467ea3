package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vortex-go/internal/app"
	"vortex-go/internal/config"
	"vortex-go/internal/httpapi"
	"vortex-go/internal/testutil"
)

const pointsJSON = `[
	{"SequenceNumber":10,"Description":"Alpha","CreationTime":"20260124162444.000000-000"},
	{"SequenceNumber":11,"Description":"Beta","CreationTime":"20260125080000.000000-000"}
]`

func newTestApp(t *testing.T, gw *testutil.FakeGateway) *app.VortexApp {
	t.Helper()
	return newTestAppWithPrivileges(t, true, gw)
}

func newTestAppWithPrivileges(t *testing.T, elevated bool, gw *testutil.FakeGateway) *app.VortexApp {
	t.Helper()

	a, err := app.NewVortexApp(config.NewConfig(t.TempDir()), "serve", app.Options{
		Gateway:    gw,
		Privileges: testutil.StubPrivileges{Elevated: elevated},
		API:        &testutil.StubSystemRestore{},
		Clock:      testutil.NewStubClock(time.Date(2026, 1, 24, 16, 30, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("NewVortexApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func newTestServer(t *testing.T, elevated bool, gw *testutil.FakeGateway) *httptest.Server {
	t.Helper()

	a := newTestAppWithPrivileges(t, elevated, gw)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(httpapi.New(a, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any, []byte) {
	t.Helper()

	header := http.Header{}
	if method == http.MethodPost {
		header.Set("Content-Type", "application/json")
	}
	return doWithHeader(t, srv, method, path, body, header)
}

func doWithHeader(t *testing.T, srv *httptest.Server, method, path, body string, header http.Header) (int, map[string]any, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if h := header.Get("Host"); h != "" {
		req.Host = h
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)
	return resp.StatusCode, obj, raw
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, true, testutil.NewFakeGateway())

	status, body, _ := do(t, srv, http.MethodGet, "/healthz", "")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("GET /healthz = %d %v", status, body)
	}
}

func TestListRestorePoints(t *testing.T) {
	gw := testutil.NewFakeGateway().On("SystemRestore | Select-Object", pointsJSON)
	srv := newTestServer(t, true, gw)

	status, _, raw := do(t, srv, http.MethodGet, "/v1/restore-points", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", status, raw)
	}

	var points []struct {
		SequenceNumber int64  `json:"sequenceNumber"`
		Description    string `json:"description"`
		DisplayTime    string `json:"displayTime"`
	}
	if err := json.Unmarshal(raw, &points); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(points) != 2 || points[0].SequenceNumber != 11 {
		t.Fatalf("points = %+v", points)
	}
	if points[1].DisplayTime != "24.01.2026 | 16:24" {
		t.Errorf("displayTime = %q", points[1].DisplayTime)
	}
}

func TestListRestorePoints_ScanFailure(t *testing.T) {
	gw := testutil.NewFakeGateway().Fail("SystemRestore | Select-Object", testutil.CommandFailure("RPC unavailable"))
	srv := newTestServer(t, true, gw)

	status, body, _ := do(t, srv, http.MethodGet, "/v1/restore-points", "")
	if status != http.StatusBadGateway || body["ok"] != false {
		t.Errorf("status = %d, body = %v", status, body)
	}
}

func TestCreateRestorePoint(t *testing.T) {
	tests := []struct {
		name       string
		elevated   bool
		body       string
		wantStatus int
	}{
		{name: "named", elevated: true, body: `{"name":"Before upgrade"}`, wantStatus: http.StatusCreated},
		{name: "empty body", elevated: true, body: "", wantStatus: http.StatusCreated},
		{name: "not elevated", elevated: false, body: `{}`, wantStatus: http.StatusForbidden},
		{name: "bad json", elevated: true, body: `{"name":`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", elevated: true, body: `{"title":"x"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.elevated, testutil.NewFakeGateway())

			status, body, _ := do(t, srv, http.MethodPost, "/v1/restore-points", tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %v)", status, tt.wantStatus, body)
			}
			if tt.wantStatus == http.StatusCreated && body["method"] != "primary" {
				t.Errorf("method = %v, want primary", body["method"])
			}
		})
	}
}

func TestDeleteRestorePoint(t *testing.T) {
	tests := []struct {
		name       string
		seqErr     error
		body       string
		wantStatus int
		wantMethod string
	}{
		{name: "by sequence", body: `{"sequenceNumber":11}`, wantStatus: http.StatusOK, wantMethod: "sequence-number"},
		{name: "by shadow", body: `{"shadowId":"{11111111-1111-1111-1111-111111111111}"}`, wantStatus: http.StatusOK, wantMethod: "shadow-copy"},
		{name: "no identifiers", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "access denied", body: `{"sequenceNumber":11}`, seqErr: testutil.CommandFailure("denied", "0x80041003"), wantStatus: http.StatusForbidden},
		{name: "os error", body: `{"sequenceNumber":11}`, seqErr: testutil.CommandFailure("restore point not found: 11"), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewFakeGateway()
			if tt.seqErr != nil {
				gw.Fail("SystemRestore | Where-Object", tt.seqErr)
			}
			srv := newTestServer(t, true, gw)

			status, body, _ := do(t, srv, http.MethodPost, "/v1/restore-points/delete", tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %v)", status, tt.wantStatus, body)
			}
			if tt.wantMethod != "" && body["method"] != tt.wantMethod {
				t.Errorf("method = %v, want %s", body["method"], tt.wantMethod)
			}
		})
	}
}

func TestStorage(t *testing.T) {
	gw := testutil.NewFakeGateway().On("Win32_ShadowStorage", `[{"Drive":"C:","Used":"2147483648"},{"Drive":"D:","Used":"1073741824"}]`)
	srv := newTestServer(t, true, gw)

	status, body, _ := do(t, srv, http.MethodGet, "/v1/storage", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["totalBytes"] != float64(3221225472) || body["total"] != "3.00 GB" {
		t.Errorf("body = %v", body)
	}
}

func TestAuditLifecycle(t *testing.T) {
	srv := newTestServer(t, true, testutil.NewFakeGateway())

	status, created, _ := do(t, srv, http.MethodPost, "/v1/audit", `{"name":"manual","description":"note"}`)
	if status != http.StatusCreated {
		t.Fatalf("POST /v1/audit status = %d", status)
	}
	id := int64(created["id"].(float64))

	status, _, raw := do(t, srv, http.MethodGet, "/v1/audit", "")
	if status != http.StatusOK || !strings.Contains(string(raw), `"name":"manual"`) {
		t.Errorf("GET /v1/audit = %d %s", status, raw)
	}

	path := "/v1/audit/" + jsonNumber(id)
	status, body, _ := do(t, srv, http.MethodDelete, path, "")
	if status != http.StatusOK || body["removed"] != float64(1) {
		t.Errorf("DELETE %s = %d %v", path, status, body)
	}

	status, _, _ = do(t, srv, http.MethodDelete, path, "")
	if status != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", status)
	}
}

func TestAuditValidation(t *testing.T) {
	srv := newTestServer(t, true, testutil.NewFakeGateway())

	if status, _, _ := do(t, srv, http.MethodPost, "/v1/audit", `{"description":"no name"}`); status != http.StatusBadRequest {
		t.Errorf("POST without name status = %d, want 400", status)
	}
	if status, _, _ := do(t, srv, http.MethodDelete, "/v1/audit/abc", ""); status != http.StatusBadRequest {
		t.Errorf("DELETE bad id status = %d, want 400", status)
	}
}

func TestCrossSiteRequestsRejected(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		header     map[string]string
		wantStatus int
	}{
		{
			name:       "text/plain delete",
			method:     http.MethodPost,
			path:       "/v1/restore-points/delete",
			header:     map[string]string{"Content-Type": "text/plain"},
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "form create",
			method:     http.MethodPost,
			path:       "/v1/restore-points",
			header:     map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "missing content type",
			method:     http.MethodPost,
			path:       "/v1/restore-points/delete",
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "foreign origin",
			method:     http.MethodPost,
			path:       "/v1/restore-points/delete",
			header:     map[string]string{"Content-Type": "application/json", "Origin": "https://evil.example"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "null origin",
			method:     http.MethodPost,
			path:       "/v1/restore-points/delete",
			header:     map[string]string{"Content-Type": "application/json", "Origin": "null"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "foreign origin on read",
			method:     http.MethodGet,
			path:       "/v1/audit",
			header:     map[string]string{"Origin": "https://evil.example"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "rebound host",
			method:     http.MethodPost,
			path:       "/v1/restore-points/delete",
			header:     map[string]string{"Content-Type": "application/json", "Host": "evil.example:7420"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "rebound host on health",
			method:     http.MethodGet,
			path:       "/healthz",
			header:     map[string]string{"Host": "evil.example"},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewFakeGateway()
			srv := newTestServer(t, true, gw)

			header := http.Header{}
			for k, v := range tt.header {
				header.Set(k, v)
			}
			status, _, _ := doWithHeader(t, srv, tt.method, tt.path, `{"sequenceNumber":5}`, header)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if calls := gw.Calls(); len(calls) != 0 {
				t.Errorf("rejected request ran %d scripts", len(calls))
			}
		})
	}
}

func TestLoopbackRequestsAllowed(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
	}{
		{name: "localhost origin", header: map[string]string{"Origin": "http://localhost:3000"}},
		{name: "loopback ip origin", header: map[string]string{"Origin": "http://127.0.0.1:7420"}},
		{name: "ipv6 loopback origin", header: map[string]string{"Origin": "http://[::1]:7420"}},
		{name: "localhost host", header: map[string]string{"Host": "localhost:7420"}},
		{name: "json with charset", header: map[string]string{"Content-Type": "application/json; charset=utf-8"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, true, testutil.NewFakeGateway())

			header := http.Header{}
			header.Set("Content-Type", "application/json")
			for k, v := range tt.header {
				header.Set(k, v)
			}
			status, body, _ := doWithHeader(t, srv, http.MethodPost, "/v1/restore-points/delete", `{"sequenceNumber":5}`, header)
			if status != http.StatusOK {
				t.Errorf("status = %d, want 200 (body %v)", status, body)
			}
		})
	}
}

func TestAllowHost(t *testing.T) {
	a := newTestApp(t, testutil.NewFakeGateway())
	server := httpapi.New(a, slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.AllowHost("vortex.lan:7420")

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set("Host", "vortex.lan:7420")
	if status, _, _ := doWithHeader(t, srv, http.MethodGet, "/healthz", "", header); status != http.StatusOK {
		t.Errorf("allowed host status = %d, want 200", status)
	}
	header.Set("Host", "other.lan:7420")
	if status, _, _ := doWithHeader(t, srv, http.MethodGet, "/healthz", "", header); status != http.StatusForbidden {
		t.Errorf("other host status = %d, want 403", status)
	}
}

func TestConcurrentMutations(t *testing.T) {
	gw := testutil.NewFakeGateway()
	srv := newTestServer(t, true, gw)

	post := func(path, body string) (int, error) {
		resp, err := srv.Client().Post(srv.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			status, err := post("/v1/restore-points", fmt.Sprintf(`{"name":"point %d"}`, i))
			if err != nil || status != http.StatusCreated {
				t.Errorf("create %d = %d, %v", i, status, err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			status, err := post("/v1/restore-points/delete", fmt.Sprintf(`{"sequenceNumber":%d}`, 100+i))
			if err != nil || status != http.StatusOK {
				t.Errorf("delete %d = %d, %v", i, status, err)
			}
		}(i)
	}
	wg.Wait()

	status, _, raw := do(t, srv, http.MethodGet, "/v1/audit", "")
	if status != http.StatusOK || strings.Count(string(raw), `"name":"point `) != 8 {
		t.Errorf("GET /v1/audit = %d %s", status, raw)
	}
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

var _ httpapi.Backend = (*app.VortexApp)(nil)
