package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func TestMain(m *testing.M) {
	// Commands must not pick up the developer's own active remote.
	activeRemote = func() Remote { return Remote{} }
	os.Exit(m.Run())
}

// fakeGateway serves canned responses per "METHOD path" and records requests.
type fakeGateway struct {
	mu        sync.Mutex
	responses map[string]string
	statuses  map[string]int
	requests  []string
	bodies    map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		responses: map[string]string{},
		statuses:  map[string]int{},
		bodies:    map[string]string{},
	}
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	g.requests = append(g.requests, key)
	data, _ := io.ReadAll(r.Body)
	g.bodies[key] = string(data)

	body, ok := g.responses[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if s := g.statuses[key]; s != 0 {
		w.WriteHeader(s)
	}
	_, _ = w.Write([]byte(body))
}

// resetFlags restores every flag of the command tree to its default so that
// tests sharing rootCmd do not see each other's flags.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCLI(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })
	t.Setenv("NO_COLOR", "1")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--url", url}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

const pageOne = `{"page":1,"pageSize":1,"total":2,"totalPages":2,"config":{
	"id": 4, "accountId": 9, "accessToken": "secret-token-123", "baseUrl": "https://chat", "instance": "loja",
	"inactivityThresholdCnpj": 30, "inactivityThresholdGeneric": null,
	"messagesCnpj": [{"kind":"text","mode":"production","sendBy":"evolutionapi","url":"","message":"Olá"}],
	"messagesGeneric": []}}`

const pageTwo = `{"page":2,"pageSize":1,"total":2,"totalPages":2,"config":{
	"id": 7, "accountId": 9, "instance": "outra",
	"inactivityThresholdCnpj": 5, "inactivityThresholdGeneric": 6,
	"messagesCnpj": [], "messagesGeneric": [{"kind":"image","mode":"debug","sendBy":"cw","url":"https://cdn/x.png","message":""}]}}`

func TestConfigShow(t *testing.T) {
	g := newFakeGateway()
	g.responses["GET /api/remarketing/config?page=1"] = pageOne
	srv := httptest.NewServer(g)
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"Page 1 of 2", "Instance:       loja", "Inactive gen.:  -", "CNPJ flow (1)", "Olá", "(empty)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret-token-123") {
		t.Error("access token printed in clear")
	}
}

func TestConfigList(t *testing.T) {
	g := newFakeGateway()
	g.responses["GET /api/remarketing/config?page=1"] = pageOne
	g.responses["GET /api/remarketing/config?page=2"] = pageTwo
	srv := httptest.NewServer(g)
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "config", "list")
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	if !strings.Contains(out, "loja") || !strings.Contains(out, "outra") {
		t.Errorf("list output:\n%s", out)
	}

	out, err = runCLI(t, srv.URL, "--json", "config", "list")
	if err != nil {
		t.Fatalf("config list --json: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil || len(rows) != 2 {
		t.Errorf("json list = %s (%v)", out, err)
	}
}

func TestConfigUpdate_ReadModifyWrite(t *testing.T) {
	g := newFakeGateway()
	g.responses["GET /api/remarketing/config?page=1"] = pageOne
	g.responses["GET /api/remarketing/config?page=2"] = pageTwo
	g.responses["PUT /api/remarketing/config/7"] = `{"config":{"id":7,"instance":"renomeada"}}`
	srv := httptest.NewServer(g)
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "config", "update", "7", "--instance", "renomeada")
	if err != nil {
		t.Fatalf("config update: %v", err)
	}
	if !strings.Contains(out, "updated config 7") {
		t.Errorf("output = %q", out)
	}

	var sent map[string]any
	if err := json.Unmarshal([]byte(g.bodies["PUT /api/remarketing/config/7"]), &sent); err != nil {
		t.Fatalf("PUT body: %v", err)
	}
	if sent["instance"] != "renomeada" || sent["inactivityThresholdGeneric"].(float64) != 6 {
		t.Errorf("PUT body = %v", sent)
	}
	if generic := sent["messagesGeneric"].([]any); len(generic) != 1 {
		t.Errorf("unchanged generic flow not carried over: %v", sent["messagesGeneric"])
	}
}

func TestConfigUpdate_UnknownID(t *testing.T) {
	g := newFakeGateway()
	g.responses["GET /api/remarketing/config?page=1"] = pageOne
	g.responses["GET /api/remarketing/config?page=2"] = pageTwo
	srv := httptest.NewServer(g)
	defer srv.Close()

	if _, err := runCLI(t, srv.URL, "config", "update", "99", "--instance", "x"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestConfigCreate_FromFile(t *testing.T) {
	g := newFakeGateway()
	g.responses["POST /api/remarketing/config"] = `{"config":{"id":12},"total":3}`
	g.statuses["POST /api/remarketing/config"] = http.StatusCreated
	srv := httptest.NewServer(g)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cfg.json")
	content := `{"instance":"from-file","accountId":2,"messagesCnpj":[{"kind":"text","mode":"production","sendBy":"cw","message":"a"}]}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, srv.URL, "config", "create", "-f", path, "--account", "5")
	if err != nil {
		t.Fatalf("config create: %v", err)
	}
	if !strings.Contains(out, "created config 12 (page 3)") {
		t.Errorf("output = %q", out)
	}
	body := g.bodies["POST /api/remarketing/config"]
	if !strings.Contains(body, `"instance":"from-file"`) || !strings.Contains(body, `"accountId":5`) {
		t.Errorf("POST body = %s", body)
	}
}

func TestConfigDelete(t *testing.T) {
	g := newFakeGateway()
	g.responses["DELETE /api/remarketing/config/3"] = `{"success":true}`
	srv := httptest.NewServer(g)
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "config", "delete", "3")
	if err != nil || !strings.Contains(out, "deleted config 3") {
		t.Errorf("delete: %q, %v", out, err)
	}

	if _, err := runCLI(t, srv.URL, "config", "delete", "4"); err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("delete missing: %v", err)
	}
	if _, err := runCLI(t, srv.URL, "config", "delete", "zero"); err == nil {
		t.Error("invalid id accepted")
	}
}

func TestInstances(t *testing.T) {
	g := newFakeGateway()
	g.responses["GET /api/remarketing/config/instances"] = `{"instances":[{"id":1,"accountId":9,"instance":"loja","baseUrl":"https://chat","inactivityThresholdCnpj":3,"inactivityThresholdGeneric":null}]}`
	srv := httptest.NewServer(g)
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "instances")
	if err != nil {
		t.Fatalf("instances: %v", err)
	}
	if !strings.Contains(out, "loja") || !strings.Contains(out, "https://chat") {
		t.Errorf("output:\n%s", out)
	}
}

func TestBroadcast(t *testing.T) {
	g := newFakeGateway()
	g.responses["POST /api/remarketing/config/messages"] = `{"updatedCount":2,"instanceIds":[7,8],"channel":"generic"}`
	srv := httptest.NewServer(g)
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "broadcast", "--ids", "7,8", "--type", "generic", "--text", "Promoção", "--text", "Até amanhã")
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if !strings.Contains(out, "generic flow updated on 2 of 2 instances (2 blocks)") {
		t.Errorf("output = %q", out)
	}

	var sent struct {
		InstanceIDs []int64 `json:"instanceIds"`
		Type        string  `json:"type"`
		Messages    []struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"messages"`
	}
	if err := json.Unmarshal([]byte(g.bodies["POST /api/remarketing/config/messages"]), &sent); err != nil {
		t.Fatal(err)
	}
	if len(sent.InstanceIDs) != 2 || sent.Type != "generic" || len(sent.Messages) != 2 || sent.Messages[1].Message != "Até amanhã" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestBroadcast_LocalValidation(t *testing.T) {
	g := newFakeGateway()
	srv := httptest.NewServer(g)
	defer srv.Close()

	for _, args := range [][]string{
		{"broadcast", "--text", "x"},
		{"broadcast", "--ids", "1"},
		{"broadcast", "--ids", "1", "--clear", "--text", "x"},
		{"broadcast", "--ids", "1", "--type", "sms", "--clear"},
		{"broadcast", "--ids", "1", "--text", "   "},
		{"broadcast", "--ids", "1", "--text", "x", "--mode", "loud"},
	} {
		if _, err := runCLI(t, srv.URL, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
	if len(g.requests) != 0 {
		t.Errorf("invalid broadcasts reached the server: %v", g.requests)
	}
}

func TestUpload_RejectsExtensionLocally(t *testing.T) {
	g := newFakeGateway()
	srv := httptest.NewServer(g)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "song.png")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, srv.URL, "upload", "audio", path); err == nil {
		t.Error("expected extension error")
	}
	if _, err := runCLI(t, srv.URL, "upload", "text", path); err == nil {
		t.Error("expected kind error")
	}
	if len(g.requests) != 0 {
		t.Errorf("rejected uploads reached the server: %v", g.requests)
	}
}

func TestUpload(t *testing.T) {
	g := newFakeGateway()
	g.responses["POST /api/remarketing/upload"] = `{"ok":true,"url":"https://files/media/remarketing/k.png","bucket":"media","key":"remarketing/k.png"}`
	srv := httptest.NewServer(g)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "banner.png")
	if err := os.WriteFile(path, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, srv.URL, "upload", "image", path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if strings.TrimSpace(out) != "https://files/media/remarketing/k.png" {
		t.Errorf("output = %q", out)
	}
}

func TestHealth(t *testing.T) {
	g := newFakeGateway()
	g.responses["GET /health"] = `{"status":"ok","service":"JauPesca Gateway"}`
	g.responses["GET /"] = `{"service":"JauPesca Gateway","projects":[{"name":"remarketing","mountPath":"/api/remarketing"}]}`
	srv := httptest.NewServer(g)
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "Health: ok") || !strings.Contains(out, "/api/remarketing") {
		t.Errorf("output:\n%s", out)
	}
}

func TestColorizeHelpOutput(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	in := "Usage:\n  rmk <command>\n\nSystem:\n  serve       Start the gateway\n\nFlags:\n      --url string   gateway base URL (default \"http://localhost:15432\")\n"
	out := colorizeHelpOutput(in)
	if !strings.Contains(out, "serve") || !strings.Contains(out, "Start the gateway") {
		t.Errorf("content lost:\n%s", out)
	}
}
