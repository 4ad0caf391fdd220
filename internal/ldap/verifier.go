package ldap

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/isometry/terraform-provider-sambadc/internal/logging"
)

// rootDSEAttributes are read from the root DSE of the verified server.
var rootDSEAttributes = []string{
	"defaultNamingContext",
	"dnsHostName",
	"serverName",
	"domainFunctionality",
	"forestFunctionality",
	"domainControllerFunctionality",
	"isSynchronized",
}

// Conn is the part of *ldap.Conn the verifier uses.
type Conn interface {
	Bind(username, password string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// DialFunc opens a connection to server.
type DialFunc func(ctx context.Context, server *ServerInfo, cfg *Config) (Conn, error)

// Verifier checks that a domain controller answers LDAP and reports its facts.
type Verifier struct {
	discovery *SRVDiscovery
	dial      DialFunc
	gssapi    func(cfg *Config) (ldap.GSSAPIClient, error)
	logger    logging.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithDialer replaces the network dialer.
func WithDialer(dial DialFunc) VerifierOption {
	return func(v *Verifier) { v.dial = dial }
}

// WithDiscovery replaces the SRV discovery used when no URL is configured.
func WithDiscovery(d *SRVDiscovery) VerifierOption {
	return func(v *Verifier) { v.discovery = d }
}

// NewVerifier creates a Verifier that dials real servers.
func NewVerifier(logger logging.Logger, opts ...VerifierOption) *Verifier {
	logger = logging.OrNop(logger)
	v := &Verifier{
		discovery: NewSRVDiscovery(nil, logger),
		dial:      dialServer,
		gssapi:    newGSSAPIClient,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify binds to the first reachable server for cfg and reads its root DSE
// and the SID of its domain.
func (v *Verifier) Verify(ctx context.Context, cfg *Config) (*DomainControllerInfo, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	servers, err := v.servers(ctx, cfg)
	if err != nil {
		return nil, err
	}

	v.logger.Debug("Verifying domain controller", logging.SanitizeFields(cfg.LogFields()))

	var lastErr error
	for _, server := range servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var info *DomainControllerInfo
		err := logging.LogOperation(v.logger, "verify_domain_controller", map[string]any{"server": server.URL()}, func() error {
			var verr error
			info, verr = v.verifyServer(ctx, server, cfg)
			return verr
		})
		if err == nil {
			v.logger.Info("Domain controller verified", info.LogFields())
			return info, nil
		}

		lastErr = err
		// Wrong credentials will not improve on the next server.
		if IsAuthenticationError(err) {
			break
		}
	}

	return nil, lastErr
}

func (v *Verifier) servers(ctx context.Context, cfg *Config) ([]*ServerInfo, error) {
	if cfg.URL != "" {
		server, err := ParseLDAPURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		return []*ServerInfo{server}, nil
	}
	return v.discovery.DiscoverServers(ctx, cfg.Domain)
}

func (v *Verifier) verifyServer(ctx context.Context, server *ServerInfo, cfg *Config) (*DomainControllerInfo, error) {
	url := server.URL()

	conn, err := v.dial(ctx, server, cfg)
	if err != nil {
		return nil, wrapError("connect", url, err)
	}
	defer conn.Close()

	if err := v.bind(conn, server, cfg); err != nil {
		return nil, wrapError("bind", url, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rootDSE, err := searchBase(conn, "", cfg, rootDSEAttributes...)
	if err != nil {
		return nil, wrapError("root DSE search", url, err)
	}

	info := &DomainControllerInfo{
		Server:                        url,
		DNSHostName:                   rootDSE.GetAttributeValue("dnsHostName"),
		ServerName:                    rootDSE.GetAttributeValue("serverName"),
		DefaultNamingContext:          rootDSE.GetAttributeValue("defaultNamingContext"),
		DomainFunctionality:           FunctionalLevelName(rootDSE.GetAttributeValue("domainFunctionality")),
		ForestFunctionality:           FunctionalLevelName(rootDSE.GetAttributeValue("forestFunctionality")),
		DomainControllerFunctionality: FunctionalLevelName(rootDSE.GetAttributeValue("domainControllerFunctionality")),
		IsSynchronized:                strings.EqualFold(rootDSE.GetAttributeValue("isSynchronized"), "TRUE"),
	}
	if info.DefaultNamingContext == "" {
		return nil, wrapError("root DSE search", url, fmt.Errorf("no defaultNamingContext found in root DSE"))
	}

	// Anonymous binds may not read the domain object.
	if cfg.AuthMethod() == AuthMethodAnonymous {
		return info, nil
	}

	domain, err := searchBase(conn, info.DefaultNamingContext, cfg, "objectSid")
	if err != nil {
		return nil, wrapError("domain search", url, err)
	}
	if info.DomainSID, err = ExtractSID(domain); err != nil {
		return nil, wrapError("domain search", url, err)
	}

	return info, nil
}

func (v *Verifier) bind(conn Conn, server *ServerInfo, cfg *Config) error {
	switch cfg.AuthMethod() {
	case AuthMethodKerberos:
		client, err := v.gssapi(cfg)
		if err != nil {
			return fmt.Errorf("failed to create GSSAPI client: %w", err)
		}
		defer func() { _ = client.DeleteSecContext() }()

		spn, err := servicePrincipal(cfg, server)
		if err != nil {
			return err
		}
		return conn.GSSAPIBind(client, spn, "")
	case AuthMethodSimpleBind:
		return conn.Bind(cfg.Username, cfg.Password)
	default:
		return nil
	}
}

func searchBase(conn Conn, dn string, cfg *Config, attributes ...string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		dn,
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1,
		int(cfg.Timeout.Seconds()),
		false,
		"(objectClass=*)",
		attributes,
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return nil, err
	}
	if len(result.Entries) == 0 {
		if dn == "" {
			return nil, fmt.Errorf("no root DSE found")
		}
		return nil, fmt.Errorf("no entry found at %s", dn)
	}
	return result.Entries[0], nil
}

// dialServer connects with LDAPS, LDAP upgraded by StartTLS, or plain LDAP.
func dialServer(_ context.Context, server *ServerInfo, cfg *Config) (Conn, error) {
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	tlsConfig := cfg.tlsConfig(server.Host)

	var conn *ldap.Conn
	var err error

	if server.UseTLS {
		conn, err = ldap.DialURL(server.URL(), ldap.DialWithDialer(dialer), ldap.DialWithTLSConfig(tlsConfig))
	} else {
		conn, err = ldap.DialURL(server.URL(), ldap.DialWithDialer(dialer))
		if err == nil && cfg.StartTLS {
			if err = conn.StartTLS(tlsConfig); err != nil {
				conn.Close()
				return nil, fmt.Errorf("StartTLS failed: %w", err)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	conn.SetTimeout(cfg.Timeout)
	return conn, nil
}
