package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/config"
)

func TestLoad_Disabled(t *testing.T) {
	tc, err := Load(config.TLSConfig{})
	if err != nil || tc != nil {
		t.Fatalf("Load(disabled) = %v, %v; want nil, nil", tc, err)
	}
}

func TestLoad_AutoGenerate(t *testing.T) {
	tc, err := Load(config.TLSConfig{Enabled: true, AutoGenerate: true, Hosts: []string{"localhost", "127.0.0.1"}})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tc.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x", tc.MinVersion)
	}
	if len(tc.Certificates) != 1 {
		t.Fatalf("certificates = %d", len(tc.Certificates))
	}

	leaf, err := x509.ParseCertificate(tc.Certificates[0].Certificate[0])
	if err != nil {
		t.Fatalf("parse leaf: %v", err)
	}
	if err := leaf.VerifyHostname("localhost"); err != nil {
		t.Errorf("localhost: %v", err)
	}
	if err := leaf.VerifyHostname("127.0.0.1"); err != nil {
		t.Errorf("127.0.0.1: %v", err)
	}
	if leaf.NotAfter.Before(time.Now().Add(300 * 24 * time.Hour)) {
		t.Errorf("NotAfter = %v", leaf.NotAfter)
	}
}

func TestLoad_NoCertificate(t *testing.T) {
	_, err := Load(config.TLSConfig{Enabled: true})
	if !errors.Is(err, ErrNoCertificate) {
		t.Errorf("err = %v, want ErrNoCertificate", err)
	}
}

func TestLoad_FromFiles(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "certs", "server.pem")
	keyFile := filepath.Join(dir, "certs", "server.key")
	if err := WriteSelfSigned([]string{"bowtie.local"}, time.Hour, certFile, keyFile); err != nil {
		t.Fatalf("WriteSelfSigned() error: %v", err)
	}

	info, err := os.Stat(keyFile)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key permissions = %o, want 600", perm)
	}

	tc, err := Load(config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, CAFile: certFile})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tc.ClientCAs == nil || tc.ClientAuth != tls.VerifyClientCertIfGiven {
		t.Error("CA file should enable optional client verification")
	}
}

func TestLoad_BadFiles(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.pem")
	if err := os.WriteFile(junk, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(config.TLSConfig{Enabled: true, CertFile: junk, KeyFile: junk}); err == nil {
		t.Error("expected error for junk key pair")
	}
	if _, err := LoadCAPool(junk); err == nil {
		t.Error("expected error for junk CA")
	}
	if _, err := LoadCAPool(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("expected error for missing CA")
	}
}
