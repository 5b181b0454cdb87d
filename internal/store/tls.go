package store

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SSLMode is the libpq-style encryption mode token of a connection string.
type SSLMode string

const (
	SSLDisable    SSLMode = "disable"
	SSLAllow      SSLMode = "allow"
	SSLPrefer     SSLMode = "prefer"
	SSLRequire    SSLMode = "require"
	SSLVerifyCA   SSLMode = "verify-ca"
	SSLVerifyFull SSLMode = "verify-full"
)

// Encrypted reports whether the mode may negotiate TLS.
func (m SSLMode) Encrypted() bool {
	return m != SSLDisable
}

var dsnSSLMode = regexp.MustCompile(`(?:^|\s)sslmode\s*=\s*'?([A-Za-z-]*)'?`)

// ParseSSLMode extracts the sslmode token from a URL or keyword/value
// connection string. Without one it falls back to PGSSLMODE, then "prefer",
// matching the driver's own defaults.
func ParseSSLMode(connString string) (SSLMode, error) {
	var raw string
	if strings.HasPrefix(connString, "postgres://") || strings.HasPrefix(connString, "postgresql://") {
		u, err := url.Parse(connString)
		if err != nil {
			return "", fmt.Errorf("parsing connection URL: %w", err)
		}
		raw = u.Query().Get("sslmode")
	} else if m := dsnSSLMode.FindStringSubmatch(connString); m != nil {
		raw = m[1]
	}
	if raw == "" {
		raw = os.Getenv("PGSSLMODE")
	}
	if raw == "" {
		return SSLPrefer, nil
	}

	mode := SSLMode(raw)
	switch mode {
	case SSLDisable, SSLAllow, SSLPrefer, SSLRequire, SSLVerifyCA, SSLVerifyFull:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported sslmode %q", raw)
	}
}

// TrustPolicy selects how server certificate chains are treated.
type TrustPolicy int

const (
	// TrustDisabled means no TLS is negotiated.
	TrustDisabled TrustPolicy = iota
	// TrustStrict validates the chain against the platform root store.
	TrustStrict
	// TrustPermissive accepts any certificate chain. The handshake itself,
	// including the server's signature over it, is still verified.
	TrustPermissive
)

func (p TrustPolicy) String() string {
	switch p {
	case TrustDisabled:
		return "disabled"
	case TrustStrict:
		return "strict"
	case TrustPermissive:
		return "permissive"
	default:
		return fmt.Sprintf("TrustPolicy(%d)", int(p))
	}
}

// Trust is an immutable trust decision made once per pool.
type Trust struct {
	policy TrustPolicy
	mode   SSLMode
	roots  *x509.CertPool
}

type trustOptions struct {
	loadRoots func() (*x509.CertPool, error)
}

// TrustOption customizes ResolveTrust.
type TrustOption func(*trustOptions)

// WithRootsLoader replaces the system root store loader.
func WithRootsLoader(fn func() (*x509.CertPool, error)) TrustOption {
	return func(o *trustOptions) {
		o.loadRoots = fn
	}
}

// ResolveTrust picks the trust policy for mode. Permissive trust is only
// chosen when explicitly requested and the mode is encrypted. Strict trust
// loads the root store here; failing to load it is an initialization error.
func ResolveTrust(mode SSLMode, permissive bool, opts ...TrustOption) (*Trust, error) {
	o := trustOptions{loadRoots: x509.SystemCertPool}
	for _, opt := range opts {
		opt(&o)
	}

	if !mode.Encrypted() {
		return &Trust{policy: TrustDisabled, mode: mode}, nil
	}

	if permissive {
		slog.Warn("database TLS certificate verification is DISABLED; server identity is not checked",
			"sslmode", string(mode),
			"policy", TrustPermissive.String(),
		)
		return &Trust{policy: TrustPermissive, mode: mode}, nil
	}

	roots, err := o.loadRoots()
	if err != nil {
		return nil, fmt.Errorf("loading root certificates: %w: %w", ErrInitialization, err)
	}
	if roots == nil {
		return nil, fmt.Errorf("loading root certificates: %w: %w", ErrInitialization, errors.New("no root certificate pool"))
	}

	return &Trust{policy: TrustStrict, mode: mode, roots: roots}, nil
}

// Policy returns the resolved policy.
func (t *Trust) Policy() TrustPolicy {
	return t.policy
}

// Mode returns the sslmode the policy was resolved from.
func (t *Trust) Mode() SSLMode {
	return t.mode
}

// TLSConfig derives the TLS client configuration for serverName from base,
// keeping client certificates, protocol settings and a root pool loaded from
// sslrootcert. A nil base yields a
// fresh configuration. It returns nil when TLS is disabled.
func (t *Trust) TLSConfig(serverName string, base *tls.Config) *tls.Config {
	if t.policy == TrustDisabled {
		return nil
	}

	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{}
	}
	cfg.VerifyPeerCertificate = nil
	cfg.VerifyConnection = nil

	switch t.policy {
	case TrustPermissive:
		cfg.RootCAs = nil
		cfg.InsecureSkipVerify = true
	case TrustStrict:
		// An sslrootcert from the connection string replaces the platform
		// roots, as it does for libpq.
		roots := t.roots
		if base != nil && base.RootCAs != nil {
			roots = base.RootCAs
		}
		cfg.RootCAs = roots
		if t.mode == SSLVerifyCA {
			// Chain only; the host name is not part of verify-ca.
			cfg.InsecureSkipVerify = true
			cfg.VerifyPeerCertificate = verifyChain(roots)
		} else {
			cfg.InsecureSkipVerify = false
			cfg.ServerName = serverName
		}
	}
	return cfg
}

// Configure rewrites every TLS configuration of a parsed connection config,
// the primary host and all fallbacks, according to the policy. Once TLS is
// in use, plaintext attempts are removed: a failed handshake is returned to
// the caller instead of being retried without encryption, so prefer behaves
// like require and allow never starts in plaintext.
func (t *Trust) Configure(cfg *pgconn.Config) {
	if t.policy == TrustDisabled {
		return
	}

	attempts := make([]*pgconn.FallbackConfig, 0, len(cfg.Fallbacks)+1)
	attempts = append(attempts, &pgconn.FallbackConfig{Host: cfg.Host, Port: cfg.Port, TLSConfig: cfg.TLSConfig})
	attempts = append(attempts, cfg.Fallbacks...)

	encrypted := make([]*pgconn.FallbackConfig, 0, len(attempts))
	for _, a := range attempts {
		if a.TLSConfig == nil {
			continue
		}
		a.TLSConfig = t.TLSConfig(a.Host, a.TLSConfig)
		encrypted = append(encrypted, a)
	}
	if len(encrypted) == 0 {
		return
	}

	cfg.Host, cfg.Port, cfg.TLSConfig = encrypted[0].Host, encrypted[0].Port, encrypted[0].TLSConfig
	cfg.Fallbacks = encrypted[1:]
}

func verifyChain(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("server presented no certificate")
		}
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			c, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("parsing server certificate: %w", err)
			}
			certs = append(certs, c)
		}
		intermediates := x509.NewCertPool()
		for _, c := range certs[1:] {
			intermediates.AddCert(c)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
		})
		return err
	}
}
