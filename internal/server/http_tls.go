package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// configureTLS applies the configured TLS mode to the server before it
// starts listening. Config validation already ran, so an unknown mode here
// means the config was mutated after load.
func (s *Server) configureTLS(httpServer *http.Server) error {
	addr := httpServer.Addr

	switch s.TLSConfig.Mode {
	case "disabled":
		fmt.Printf("Listening on http://%s (TLS disabled)\n", addr)
		return nil
	case "server":
		fmt.Printf("Listening on https://%s (server TLS)\n", addr)
	case "mutual":
		fmt.Printf("Listening on https://%s (mutual TLS, client certificates required)\n", addr)
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", s.TLSConfig.Mode)
	}

	tlsConfig, err := s.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("building TLS config: %w", err)
	}
	httpServer.TLSConfig = tlsConfig
	return nil
}

// buildTLSConfig assembles the tls.Config for server or mutual mode.
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	cert, err := s.serverCertificate()
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   s.minTLSVersion(),
	}

	if s.TLSConfig.Mode == "mutual" {
		pool, err := s.clientCAPool()
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = s.clientAuthPolicy()
	}

	return tlsConfig, nil
}

// serverCertificate prefers inline PEM content, which is how Vault delivers
// material, over file paths.
func (s *Server) serverCertificate() (tls.Certificate, error) {
	tc := s.TLSConfig
	switch {
	case tc.CertContent != "" && tc.KeyContent != "":
		cert, err := tls.X509KeyPair([]byte(tc.CertContent), []byte(tc.KeyContent))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("loading server key pair from inline content: %w", err)
		}
		return cert, nil
	case tc.CertFile != "" && tc.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(tc.CertFile, tc.KeyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("loading server key pair from disk: %w", err)
		}
		return cert, nil
	default:
		return tls.Certificate{}, fmt.Errorf("server certificate and key are not configured")
	}
}

// minTLSVersion maps the validated config string, defaulting to TLS 1.2.
func (s *Server) minTLSVersion() uint16 {
	if s.TLSConfig.MinVersion == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

// clientCAPool builds the verification pool for client certificates.
func (s *Server) clientCAPool() (*x509.CertPool, error) {
	pem, err := s.caCertificatePEM()
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("client CA bundle contains no usable certificates")
	}
	return pool, nil
}

// caCertificatePEM resolves the CA the same way as the server certificate,
// inline content first.
func (s *Server) caCertificatePEM() ([]byte, error) {
	if s.TLSConfig.CAContent != "" {
		return []byte(s.TLSConfig.CAContent), nil
	}
	if s.TLSConfig.CAFile != "" {
		data, err := os.ReadFile(s.TLSConfig.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading client CA bundle: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("no client CA bundle configured for mutual TLS")
}

// clientAuthPolicy maps the validated policy string. Mutual mode defaults to
// requiring and verifying a client certificate.
func (s *Server) clientAuthPolicy() tls.ClientAuthType {
	switch s.TLSConfig.ClientAuthPolicy {
	case "request":
		return tls.RequestClientCert
	case "verify":
		return tls.VerifyClientCertIfGiven
	default:
		return tls.RequireAndVerifyClientCert
	}
}
