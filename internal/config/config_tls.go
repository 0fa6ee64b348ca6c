package config

import "fmt"

// ValidateTLSConfig checks the server TLS settings against the configured
// mode. serve re-runs it after applying flag overrides, so it must not
// depend on any other part of the config having been validated first.
func (c *Config) ValidateTLSConfig() error {
	tls := c.Server.TLS

	switch tls.Mode {
	case "disabled":
		// Certificate settings are ignored in disabled mode.
	case "server":
		if err := validateTLSCertAndKey(tls, "server mode"); err != nil {
			return err
		}
	case "mutual":
		if err := validateTLSCertAndKey(tls, "mutual mode"); err != nil {
			return err
		}
		if err := validateTLSClientCA(tls); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", tls.Mode)
	}

	switch tls.MinVersion {
	case "", "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", tls.MinVersion)
	}
}

// validateTLSCertAndKey checks the certificate and key slots. Each slot
// accepts a file path or inline content but never both at once.
func validateTLSCertAndKey(tls TLSConfig, mode string) error {
	if (tls.CertFile == "" && tls.CertContent == "") || (tls.KeyFile == "" && tls.KeyContent == "") {
		return fmt.Errorf("TLS certificate and key are required for %s (provide either files or content)", mode)
	}
	if tls.CertFile != "" && tls.CertContent != "" {
		return fmt.Errorf("cannot specify both certFile and certContent")
	}
	if tls.KeyFile != "" && tls.KeyContent != "" {
		return fmt.Errorf("cannot specify both keyFile and keyContent")
	}
	return nil
}

// validateTLSClientCA checks the mutual-mode extras: the client CA slot and
// the client auth policy. An empty policy falls back to require.
func validateTLSClientCA(tls TLSConfig) error {
	if tls.CAFile == "" && tls.CAContent == "" {
		return fmt.Errorf("CA certificate is required for mutual TLS mode (provide either caFile or caContent)")
	}
	if tls.CAFile != "" && tls.CAContent != "" {
		return fmt.Errorf("cannot specify both caFile and caContent")
	}
	switch tls.ClientAuthPolicy {
	case "", "require", "request", "verify":
		return nil
	default:
		return fmt.Errorf("invalid clientAuthPolicy: %s (must be 'require', 'request', or 'verify')", tls.ClientAuthPolicy)
	}
}
