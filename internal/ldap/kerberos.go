package ldap

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// newGSSAPIClient creates a GSSAPI client from the configuration.
// Priority order: credential cache, keytab, password.
func newGSSAPIClient(cfg *Config) (ldap.GSSAPIClient, error) {
	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = "/etc/krb5.conf"
	}
	if !fileExists(krb5conf) {
		return nil, fmt.Errorf("Kerberos configuration file not found at %s", krb5conf)
	}

	username, realm := splitPrincipal(cfg.Username, cfg.KerberosRealm)

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if username == "" {
		return nil, fmt.Errorf("username (principal) is required for Kerberos authentication")
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		return gssapi.NewClientWithKeytab(username, realm, cfg.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.Password != "" {
		return gssapi.NewClientWithPassword(username, realm, cfg.Password, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if ccache := defaultCCachePath(); fileExists(ccache) {
		return gssapi.NewClientFromCCache(ccache, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable Kerberos credentials found: provide kerberos_ccache, kerberos_keytab or password")
}

// splitPrincipal separates user@REALM, falling back to the configured realm.
func splitPrincipal(username, realm string) (string, string) {
	if at := strings.LastIndex(username, "@"); at > 0 {
		if realm == "" {
			realm = username[at+1:]
		}
		username = username[:at]
	}
	return username, strings.ToUpper(realm)
}

// servicePrincipal returns the LDAP SPN for a server, honouring an explicit
// override.
func servicePrincipal(cfg *Config, server *ServerInfo) (string, error) {
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}
	if server == nil || server.Host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}
	return "ldap/" + server.Host, nil
}

func defaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
