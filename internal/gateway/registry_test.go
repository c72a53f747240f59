package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.URL.Path)
	})
}

func TestRegister_Validation(t *testing.T) {
	for _, tc := range []struct {
		name    string
		project Project
		wantErr string
	}{
		{"missing name", Project{Handler: echoHandler("x")}, "name is required"},
		{"missing handler", Project{Name: "x"}, "handler is required"},
		{"relative mount", Project{Name: "x", MountPath: "api/x", Handler: echoHandler("x")}, "must start with /"},
		{"reserved health", Project{Name: "x", MountPath: "/health", Handler: echoHandler("x")}, "reserved"},
		{"reserved root", Project{Name: "x", MountPath: "/", Handler: echoHandler("x")}, "reserved"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry("test", discardLogger())
			err := reg.Register(tc.project)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Register error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestRegister_DefaultMountPathAndDuplicates(t *testing.T) {
	reg := NewRegistry("test", discardLogger())
	if err := reg.Register(Project{Name: "reports", Handler: echoHandler("reports")}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := reg.Projects()[0].MountPath; got != "/reports" {
		t.Errorf("default mount path = %q, want /reports", got)
	}

	if err := reg.Register(Project{Name: "other", MountPath: "/reports/", Handler: echoHandler("other")}); err == nil {
		t.Error("expected duplicate mount path to be rejected")
	}
	if err := reg.Register(Project{Name: "reports", MountPath: "/r2", Handler: echoHandler("r2")}); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
}

func TestHandler_MountsProjects(t *testing.T) {
	reg := NewRegistry("JauPesca Gateway", discardLogger())
	if err := reg.Register(Project{Name: "remarketing", MountPath: "/api/remarketing", Handler: echoHandler("remarketing")}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(Project{Name: "reports", Handler: echoHandler("reports")}); err != nil {
		t.Fatal(err)
	}
	h := reg.Handler()

	for _, tc := range []struct {
		path string
		want string
	}{
		{"/api/remarketing/config", "remarketing /config"},
		{"/reports/x", "reports /x"},
		{"/reports", "reports /"},
		{"/api/remarketing/", "remarketing /"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != tc.want {
			t.Errorf("GET %s = %d %q, want 200 %q", tc.path, rec.Code, rec.Body.String(), tc.want)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /nowhere = %d, want 404", rec.Code)
	}
}

func TestHandler_MountsChiSubRouter(t *testing.T) {
	sub := chi.NewRouter()
	sub.Get("/config/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "config "+chi.URLParam(r, "id")+" "+r.URL.Path)
	})
	sub.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "status")
	})

	reg := NewRegistry("JauPesca Gateway", discardLogger())
	if err := reg.Register(Project{Name: "remarketing", MountPath: "/api/remarketing", Handler: sub}); err != nil {
		t.Fatal(err)
	}
	h := reg.Handler()

	for _, tc := range []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/api/remarketing/config/7", http.StatusOK, "config 7 /config/7"},
		{"/api/remarketing", http.StatusOK, "status"},
		{"/api/remarketing/", http.StatusOK, "status"},
		{"/api/remarketing/missing", http.StatusNotFound, ""},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.wantCode {
			t.Errorf("GET %s = %d, want %d", tc.path, rec.Code, tc.wantCode)
			continue
		}
		if tc.wantBody != "" && rec.Body.String() != tc.wantBody {
			t.Errorf("GET %s body = %q, want %q", tc.path, rec.Body.String(), tc.wantBody)
		}
	}
}

func TestHandler_Health(t *testing.T) {
	reg := NewRegistry("JauPesca Gateway", discardLogger())
	reg.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "JauPesca Gateway" || body["timestamp"] != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestHandler_Index(t *testing.T) {
	reg := NewRegistry("gw", discardLogger())
	_ = reg.Register(Project{Name: "remarketing", MountPath: "/api/remarketing", Handler: echoHandler("r")})

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var body struct {
		Service  string        `json:"service"`
		Projects []projectInfo `json:"projects"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Service != "gw" || len(body.Projects) != 1 || body.Projects[0].MountPath != "/api/remarketing" {
		t.Errorf("unexpected index %+v", body)
	}
}

func TestRecoverer(t *testing.T) {
	reg := NewRegistry("gw", discardLogger())
	_ = reg.Register(Project{Name: "boom", Handler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})})

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestGRPCHealth(t *testing.T) {
	reg := NewRegistry("gw", discardLogger())
	_ = reg.Register(Project{Name: "remarketing", Handler: echoHandler("r")})

	srv, _ := NewGRPCServer(reg, discardLogger())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve(lis) //nolint:errcheck
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := healthpb.NewHealthClient(conn)

	for _, svc := range []string{"", "remarketing"} {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err != nil {
			t.Fatalf("Check(%q): %v", svc, err)
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Errorf("Check(%q) = %v, want SERVING", svc, resp.GetStatus())
		}
	}

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("Check(unknown) code = %v, want NotFound", status.Code(err))
	}
}

func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(discardLogger())
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"}, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}

	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"}, stubHandler)
	if err != nil || resp != "ok" {
		t.Fatalf("got (%v, %v), want (ok, nil)", resp, err)
	}
}
