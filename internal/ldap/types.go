package ldap

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// Config describes how to reach and authenticate against a domain controller.
type Config struct {
	// URL of a specific server (ldap:// or ldaps://). When empty the servers
	// of Domain are discovered through DNS SRV records.
	URL    string `yaml:"url"`
	Domain string `yaml:"domain"`

	// StartTLS upgrades plain ldap:// connections before binding.
	StartTLS              bool `yaml:"start_tls"`
	TLSInsecureSkipVerify bool `yaml:"tls_insecure_skip_verify"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// A non-empty KerberosRealm selects GSSAPI authentication.
	KerberosRealm  string `yaml:"kerberos_realm"`
	KerberosConfig string `yaml:"kerberos_config" default:"/etc/krb5.conf"`
	KerberosKeytab string `yaml:"kerberos_keytab"`
	KerberosCCache string `yaml:"kerberos_ccache"`
	KerberosSPN    string `yaml:"kerberos_spn"`

	Timeout time.Duration `yaml:"timeout" default:"30s"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	return cfg
}

// WithDefaults returns a copy of c with unset fields defaulted.
func (c Config) WithDefaults() *Config {
	if err := defaults.Set(&c); err != nil {
		return DefaultConfig()
	}
	return &c
}

// Validate checks that the configuration names a target and usable credentials.
func (c *Config) Validate() error {
	if c.URL == "" && c.Domain == "" {
		return fmt.Errorf("either url or domain must be set")
	}
	if c.URL != "" {
		if _, err := ParseLDAPURL(c.URL); err != nil {
			return err
		}
	}
	if c.AuthMethod() == AuthMethodSimpleBind && c.Username != "" && c.Password == "" {
		return fmt.Errorf("password is required for simple bind as %s", c.Username)
	}
	return nil
}

// AuthMethod reports which bind the configuration selects.
func (c *Config) AuthMethod() AuthMethod {
	if c.KerberosRealm != "" {
		return AuthMethodKerberos
	}
	if c.Username == "" {
		return AuthMethodAnonymous
	}
	return AuthMethodSimpleBind
}

func (c *Config) tlsConfig(host string) *tls.Config {
	return &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: c.TLSInsecureSkipVerify, //nolint:gosec
		MinVersion:         tls.VersionTLS12,
	}
}

// LogFields returns the configuration without secrets.
func (c *Config) LogFields() map[string]any {
	return map[string]any{
		"url":         c.URL,
		"domain":      c.Domain,
		"start_tls":   c.StartTLS,
		"auth_method": c.AuthMethod().String(),
		"username":    c.Username,
	}
}

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodAnonymous  AuthMethod = iota // No bind, root DSE only
	AuthMethodSimpleBind                   // Username/password authentication
	AuthMethodKerberos                     // GSSAPI/Kerberos authentication
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodAnonymous:
		return "anonymous"
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	default:
		return "unknown"
	}
}

// ServerInfo contains information about a discovered LDAP server.
type ServerInfo struct {
	Host     string
	Port     int
	UseTLS   bool   // true for LDAPS (636), false for LDAP (389)
	Priority int    // SRV record priority
	Weight   int    // SRV record weight
	Source   string // "srv", "config", "fallback"
}

// URL renders the server as an LDAP URL.
func (s *ServerInfo) URL() string {
	scheme := "ldap"
	if s.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Host, s.Port)
}

// DomainControllerInfo holds what a domain controller reports about itself.
type DomainControllerInfo struct {
	Server                        string
	DNSHostName                   string
	ServerName                    string
	DefaultNamingContext          string
	DomainSID                     string
	DomainFunctionality           string
	ForestFunctionality           string
	DomainControllerFunctionality string
	IsSynchronized                bool
}

// LogFields returns the facts as structured log fields.
func (i *DomainControllerInfo) LogFields() map[string]any {
	return map[string]any{
		"server":                 i.Server,
		"dns_host_name":          i.DNSHostName,
		"default_naming_context": i.DefaultNamingContext,
		"domain_sid":             i.DomainSID,
		"domain_functionality":   i.DomainFunctionality,
		"forest_functionality":   i.ForestFunctionality,
		"dc_functionality":       i.DomainControllerFunctionality,
		"is_synchronized":        i.IsSynchronized,
	}
}

// functionalLevels maps msDS-Behavior-Version values to level names.
var functionalLevels = map[int]string{
	0: "2000",
	1: "2003_INTERIM",
	2: "2003",
	3: "2008",
	4: "2008_R2",
	5: "2012",
	6: "2012_R2",
	7: "2016",
}

// FunctionalLevelName converts a root DSE functionality value to a level name.
// Values outside the known range are returned unchanged.
func FunctionalLevelName(value string) string {
	value = strings.TrimSpace(value)
	n, err := strconv.Atoi(value)
	if err != nil {
		return value
	}
	if name, ok := functionalLevels[n]; ok {
		return name
	}
	return value
}
