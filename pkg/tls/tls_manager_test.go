package tls

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManagerDisabledByDefault(t *testing.T) {
	manager, err := NewManager(ConfigFromSettings())
	if err != nil {
		t.Fatalf("Failed to create TLS manager: %v", err)
	}
	if manager.Enabled() {
		t.Error("TLS should be disabled by default")
	}
	if manager.TLSConfig() != nil {
		t.Error("TLS config should be nil when TLS is disabled")
	}
	if manager.NeedsHTTPServer() {
		t.Error("plain server only needed next to HTTPS")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing domain", Config{EnableTLS: true, EnableLetsEncrypt: true, LetsEncryptEmail: "ops@webdesk.test", HTTPSPort: "443"}},
		{"missing email", Config{EnableTLS: true, EnableLetsEncrypt: true, Domain: "webdesk.test", HTTPSPort: "443"}},
		{"missing port", Config{EnableTLS: true, CertFile: "a", KeyFile: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMissingCertificateWithoutSelfSigned(t *testing.T) {
	dir := t.TempDir()
	_, err := NewManager(Config{
		EnableTLS: true,
		CertFile:  filepath.Join(dir, "server.crt"),
		KeyFile:   filepath.Join(dir, "server.key"),
		HTTPSPort: "8443",
	})
	if err == nil {
		t.Fatal("expected error for missing certificate files")
	}
}

func TestSelfSignedCertificateIsGenerated(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		EnableTLS:  true,
		CertFile:   filepath.Join(dir, "certs", "server.crt"),
		KeyFile:    filepath.Join(dir, "certs", "server.key"),
		HTTPPort:   "8080",
		HTTPSPort:  "8443",
		Domain:     "desk.local",
		SelfSigned: true,
	}
	manager, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if manager.TLSConfig() == nil || len(manager.TLSConfig().Certificates) != 1 {
		t.Fatal("expected one loaded certificate")
	}

	data, err := os.ReadFile(cfg.CertFile)
	if err != nil {
		t.Fatal(err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		t.Fatal("certificate is not PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if err := cert.VerifyHostname("desk.local"); err != nil {
		t.Errorf("domain not in certificate: %v", err)
	}
	if err := cert.VerifyHostname("127.0.0.1"); err != nil {
		t.Errorf("loopback not in certificate: %v", err)
	}

	info, err := os.Stat(cfg.KeyFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key permissions = %v, want 0600", info.Mode().Perm())
	}

	// A second start reuses the files.
	before, _ := os.ReadFile(cfg.CertFile)
	if _, err := NewManager(cfg); err != nil {
		t.Fatal(err)
	}
	after, _ := os.ReadFile(cfg.CertFile)
	if string(before) != string(after) {
		t.Error("existing certificate was regenerated")
	}
}

func TestRedirectHandler(t *testing.T) {
	tests := []struct {
		port string
		want string
	}{
		{"8443", "https://desk.local:8443/ws?token=x"},
		{"443", "https://desk.local/ws?token=x"},
	}
	for _, tt := range tests {
		manager := &Manager{config: Config{HTTPSPort: tt.port, ForceHTTPSRedirect: true}}
		req := httptest.NewRequest(http.MethodGet, "http://desk.local:8080/ws?token=x", nil)
		rec := httptest.NewRecorder()
		manager.RedirectHandler().ServeHTTP(rec, req)

		if rec.Code != http.StatusMovedPermanently {
			t.Errorf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Location"); got != tt.want {
			t.Errorf("Location = %q, want %q", got, tt.want)
		}
	}
}

func TestPlainHandlerRedirectsWhenForced(t *testing.T) {
	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	forced := &Manager{config: Config{EnableTLS: true, ForceHTTPSRedirect: true, HTTPSPort: "443"}}
	rec := httptest.NewRecorder()
	forced.plainHandler(app).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://desk.local/", nil))
	if rec.Code != http.StatusMovedPermanently {
		t.Errorf("forced redirect status = %d", rec.Code)
	}

	open := &Manager{config: Config{EnableTLS: true, HTTPSPort: "443"}}
	rec = httptest.NewRecorder()
	open.plainHandler(app).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://desk.local/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("plain status = %d, want app response", rec.Code)
	}
}

func TestServeStopsWithContext(t *testing.T) {
	manager := &Manager{config: Config{HTTPPort: "0"}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Serve(ctx, http.NotFoundHandler()) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
