// Package tls serves the desktop over plain HTTP or HTTPS, with certificates
// from Let's Encrypt, from files, or generated on first start for development.
package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/logger"

	"golang.org/x/crypto/acme/autocert"
)

// Config holds the [TLS] settings.
type Config struct {
	EnableTLS          bool
	EnableLetsEncrypt  bool
	Domain             string
	LetsEncryptEmail   string
	CertCacheDir       string
	ForceHTTPSRedirect bool
	CertFile           string
	KeyFile            string
	HTTPPort           string
	HTTPSPort          string
	// SelfSigned creates CertFile and KeyFile when they are missing.
	SelfSigned bool
}

// ConfigFromSettings reads the [TLS] section.
func ConfigFromSettings() Config {
	return Config{
		EnableTLS:          configuration.GetBool("TLS", "enable_tls", false),
		EnableLetsEncrypt:  configuration.GetBool("TLS", "enable_letsencrypt", false),
		Domain:             configuration.GetString("TLS", "domain", ""),
		LetsEncryptEmail:   configuration.GetString("TLS", "letsencrypt_email", ""),
		CertCacheDir:       configuration.GetString("TLS", "cert_cache_dir", "./certs"),
		ForceHTTPSRedirect: configuration.GetBool("TLS", "force_https_redirect", false),
		CertFile:           configuration.GetString("TLS", "cert_file", "./certs/server.crt"),
		KeyFile:            configuration.GetString("TLS", "key_file", "./certs/server.key"),
		HTTPPort:           configuration.GetString("TLS", "http_port", "8080"),
		HTTPSPort:          configuration.GetString("TLS", "https_port", "8443"),
		SelfSigned:         configuration.GetBool("TLS", "self_signed", true),
	}
}

// Manager owns the certificate source and the listeners.
type Manager struct {
	config      Config
	autocertMgr *autocert.Manager
	tlsConfig   *tls.Config
}

// NewManager validates cfg and prepares certificates when TLS is enabled.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{config: cfg}
	if err := m.validateConfig(); err != nil {
		return nil, fmt.Errorf("TLS configuration validation failed: %w", err)
	}
	if !cfg.EnableTLS {
		return m, nil
	}
	var err error
	if cfg.EnableLetsEncrypt {
		err = m.initializeLetsEncrypt()
	} else {
		err = m.initializeFileTLS()
	}
	if err != nil {
		return nil, fmt.Errorf("TLS initialization failed: %w", err)
	}
	return m, nil
}

func (m *Manager) validateConfig() error {
	if !m.config.EnableTLS {
		return nil
	}
	if m.config.HTTPSPort == "" {
		return errors.New("https_port is required when TLS is enabled")
	}
	if m.config.EnableLetsEncrypt {
		if strings.TrimSpace(m.config.Domain) == "" {
			return errors.New("domain is required when Let's Encrypt is enabled")
		}
		if strings.TrimSpace(m.config.LetsEncryptEmail) == "" {
			return errors.New("letsencrypt_email is required when Let's Encrypt is enabled")
		}
		if strings.Contains(m.config.Domain, "example.com") {
			logger.SecurityWarn("Using example domain - change this in production!")
		}
	}
	return nil
}

func (m *Manager) initializeLetsEncrypt() error {
	logger.SecurityInfo("Initializing Let's Encrypt for domain: %s", m.config.Domain)
	if err := os.MkdirAll(m.config.CertCacheDir, 0700); err != nil {
		return fmt.Errorf("failed to create certificate cache directory: %w", err)
	}

	domain := m.config.Domain
	m.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(m.config.CertCacheDir),
		Prompt:     autocert.AcceptTOS,
		Email:      m.config.LetsEncryptEmail,
		HostPolicy: autocert.HostWhitelist(domain, "www."+domain),
	}
	m.tlsConfig = &tls.Config{
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			if hello.ServerName == "" {
				hello.ServerName = domain
			}
			cert, err := m.autocertMgr.GetCertificate(hello)
			if err != nil {
				logger.SecurityWarn("Failed to get certificate for %s: %v", hello.ServerName, err)
				return nil, err
			}
			return cert, nil
		},
		NextProtos: []string{"h2", "http/1.1", "acme-tls/1"},
		MinVersion: tls.VersionTLS12,
	}
	return nil
}

// initializeFileTLS loads the configured key pair, creating a self-signed
// one first when allowed.
func (m *Manager) initializeFileTLS() error {
	_, certErr := os.Stat(m.config.CertFile)
	_, keyErr := os.Stat(m.config.KeyFile)
	if os.IsNotExist(certErr) || os.IsNotExist(keyErr) {
		if !m.config.SelfSigned {
			return fmt.Errorf("certificate or key file not found: %s, %s", m.config.CertFile, m.config.KeyFile)
		}
		hosts := []string{"localhost", "127.0.0.1"}
		if m.config.Domain != "" {
			hosts = append(hosts, m.config.Domain)
		}
		if err := GenerateSelfSignedCert(m.config.CertFile, m.config.KeyFile, hosts); err != nil {
			return err
		}
		logger.SecurityWarn("Generated a self-signed certificate at %s - browsers will warn about it", m.config.CertFile)
	}

	pair, err := tls.LoadX509KeyPair(m.config.CertFile, m.config.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}
	m.tlsConfig = &tls.Config{
		Certificates: []tls.Certificate{pair},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS12,
	}
	logger.SecurityInfo("TLS enabled with certificate %s", m.config.CertFile)
	return nil
}

// TLSConfig returns nil when TLS is disabled.
func (m *Manager) TLSConfig() *tls.Config {
	if !m.config.EnableTLS {
		return nil
	}
	return m.tlsConfig
}

func (m *Manager) Enabled() bool { return m.config.EnableTLS }

// NeedsHTTPServer reports whether the plain port must stay open next to
// HTTPS, for ACME challenges or redirects.
func (m *Manager) NeedsHTTPServer() bool {
	return m.config.EnableTLS && (m.config.EnableLetsEncrypt || m.config.ForceHTTPSRedirect)
}

// RedirectHandler sends every request to the HTTPS port of the same host.
func (m *Manager) RedirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		target := "https://" + host
		if m.config.HTTPSPort != "443" {
			target += ":" + m.config.HTTPSPort
		}
		target += r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

// plainHandler is what the HTTP port serves while TLS is on.
func (m *Manager) plainHandler(app http.Handler) http.Handler {
	fallback := app
	if m.config.ForceHTTPSRedirect {
		fallback = m.RedirectHandler()
	}
	if m.autocertMgr != nil {
		return m.autocertMgr.HTTPHandler(fallback)
	}
	return fallback
}

// Serve runs the listeners until ctx is done, then shuts them down.
func (m *Manager) Serve(ctx context.Context, app http.Handler) error {
	var servers []*http.Server
	errCh := make(chan error, 2)

	start := func(srv *http.Server, useTLS bool) {
		servers = append(servers, srv)
		go func() {
			var err error
			if useTLS {
				err = srv.ListenAndServeTLS("", "")
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s: %w", srv.Addr, err)
			}
		}()
	}

	errorLog := logger.StdLogger(logger.AreaGeneral, logger.WARN)
	if !m.config.EnableTLS {
		logger.Info(logger.AreaGeneral, "Listening on http://localhost:%s", m.config.HTTPPort)
		start(&http.Server{Addr: ":" + m.config.HTTPPort, Handler: app, ErrorLog: errorLog}, false)
	} else {
		if m.NeedsHTTPServer() {
			start(&http.Server{Addr: ":" + m.config.HTTPPort, Handler: m.plainHandler(app), ErrorLog: errorLog}, false)
		}
		logger.SecurityInfo("Listening on https://localhost:%s", m.config.HTTPSPort)
		start(&http.Server{Addr: ":" + m.config.HTTPSPort, Handler: app, TLSConfig: m.tlsConfig, ErrorLog: errorLog}, true)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		srv.Shutdown(shutdownCtx)
	}
	return serveErr
}

// GenerateSelfSignedCert writes an ECDSA key and a one year certificate for
// hosts, creating parent directories as needed.
func GenerateSelfSignedCert(certFile, keyFile string, hosts []string) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"webdesk development"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	if err := writePEM(certFile, "CERTIFICATE", der, 0644); err != nil {
		return err
	}
	return writePEM(keyFile, "EC PRIVATE KEY", keyDER, 0600)
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
