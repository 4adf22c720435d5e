package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/unitconsole/internal/controller"
	"github.com/danmuck/unitconsole/internal/testutil/testlog"
	"github.com/danmuck/unitconsole/internal/unit"
)

func newTestServer(t *testing.T) (*Server, *controller.Service) {
	t.Helper()
	reg := unit.NewRegistry()
	for _, u := range []unit.Unit{
		{Handle: 7, ID: 1, Label: "Lumberjack", Category: unit.Advanced, Running: true},
		{Handle: 8, ID: 2, Label: "Miner", Category: unit.Advanced},
		{Handle: 9, ID: 3, Category: unit.Normal},
	} {
		if err := reg.Add(u); err != nil {
			t.Fatalf("add unit: %v", err)
		}
	}
	cfg := controller.DefaultServiceConfig()
	cfg.ControllerID = "ctl-admin"
	svc, err := controller.NewService(cfg, reg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return New(svc, "127.0.0.1:0", nil), svc
}

func serve(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
}

func TestHealthReportsController(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	rr := serve(t, s, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	decode(t, rr, &body)
	if body["controller"] != "ctl-admin" || body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUnitsRoute(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)

	tests := []struct {
		path    string
		code    int
		handles []int32
	}{
		{path: "/units", code: http.StatusOK, handles: []int32{7, 8, 9}},
		{path: "/units?selector=~advanced", code: http.StatusOK, handles: []int32{7, 8}},
		{path: "/units?selector=%233", code: http.StatusOK, handles: []int32{9}},
		{path: "/units?selector=@Nobody", code: http.StatusOK, handles: []int32{}},
		{path: "/units?selector=@", code: http.StatusBadRequest},
		{path: "/units?selector=7%20x", code: http.StatusBadRequest},
	}
	for _, tc := range tests {
		rr := serve(t, s, http.MethodGet, tc.path, "")
		if rr.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d body=%s", tc.path, tc.code, rr.Code, rr.Body.String())
		}
		if tc.code != http.StatusOK {
			continue
		}
		var body struct {
			Units []UnitView `json:"units"`
		}
		decode(t, rr, &body)
		got := make([]int32, 0, len(body.Units))
		for _, u := range body.Units {
			got = append(got, u.Handle)
		}
		if len(got) != len(tc.handles) {
			t.Fatalf("%s: expected handles %v, got %v", tc.path, tc.handles, got)
		}
		for i := range got {
			if got[i] != tc.handles[i] {
				t.Fatalf("%s: expected handles %v, got %v", tc.path, tc.handles, got)
			}
		}
	}
}

func TestCommandsRouteServesDescriptorDocuments(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	rr := serve(t, s, http.MethodGet, "/commands", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Commands []struct {
			Name       string         `json:"name"`
			Examples   []string       `json:"examples"`
			Descriptor map[string]any `json:"descriptor"`
		} `json:"commands"`
	}
	decode(t, rr, &body)
	if len(body.Commands) != 4 {
		t.Fatalf("expected 4 commands, got %d", len(body.Commands))
	}
	for _, cmd := range body.Commands {
		if cmd.Name != "shutdown" {
			continue
		}
		if cmd.Descriptor["kind"] != "unitconsole:repeat" {
			t.Fatalf("unexpected shutdown descriptor: %v", cmd.Descriptor)
		}
		child, ok := cmd.Descriptor["child"].(map[string]any)
		if !ok || child["kind"] != "unitconsole:units" || child["requireSome"] != true {
			t.Fatalf("unexpected shutdown child: %v", cmd.Descriptor["child"])
		}
		if cmd.Descriptor["zeroOrMore"] != false || cmd.Descriptor["flatten"] != false {
			t.Fatalf("unexpected shutdown flags: %v", cmd.Descriptor)
		}
		if len(cmd.Examples) == 0 || cmd.Examples[0] != "shutdown 0" {
			t.Fatalf("unexpected shutdown examples: %v", cmd.Examples)
		}
		return
	}
	t.Fatalf("shutdown command missing")
}

func TestExecuteRouteStatusByErrorKind(t *testing.T) {
	testlog.Start(t)
	s, svc := newTestServer(t)

	tests := []struct {
		body string
		code int
		kind string
	}{
		{body: `{"input":"shutdown 7"}`, code: http.StatusOK, kind: "ok"},
		{body: `{"input":"dump @Nobody"}`, code: http.StatusNotFound, kind: "no_match"},
		{body: `{"input":"dump @"}`, code: http.StatusBadRequest, kind: "parse"},
	}
	for _, tc := range tests {
		rr := serve(t, s, http.MethodPost, "/execute", tc.body)
		if rr.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d body=%s", tc.body, tc.code, rr.Code, rr.Body.String())
		}
		var res executeResponse
		decode(t, rr, &res)
		if res.ErrorKind != tc.kind {
			t.Fatalf("%s: expected kind %q, got %+v", tc.body, tc.kind, res)
		}
	}
	if u, _ := svc.Units().Get(7); u.Running {
		t.Fatalf("expected unit 7 stopped")
	}

	rr := serve(t, s, http.MethodPost, "/execute", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing input, got %d", rr.Code)
	}
}

func TestMetricsRouteExposesConsoleCounters(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	serve(t, s, http.MethodPost, "/execute", `{"input":"list"}`)
	rr := serve(t, s, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "unitconsole_console_requests_total") {
		t.Fatalf("expected console counters in metrics output")
	}
}

func TestExecuteRouteRequiresTokenWhenConfigured(t *testing.T) {
	testlog.Start(t)
	cfg := controller.DefaultServiceConfig()
	cfg.AdminToken = "s3cret"
	svc, err := controller.NewService(cfg, unit.NewRegistry())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	s := New(svc, "127.0.0.1:0", nil)

	rr := serve(t, s, http.MethodPost, "/execute", `{"input":"list"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(`{"input":"list"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer s3cret")
	rr = httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d body=%s", rr.Code, rr.Body.String())
	}

	if rr := serve(t, s, http.MethodGet, "/units", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected read routes open, got %d", rr.Code)
	}
}
