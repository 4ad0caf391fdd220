package ldap

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/isometry/terraform-provider-sambadc/internal/logging"
)

// Resolver is the subset of net.Resolver used for SRV lookups.
type Resolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// SRVDiscovery handles DNS SRV record discovery for domain controllers.
type SRVDiscovery struct {
	resolver Resolver
	logger   logging.Logger
}

// NewSRVDiscovery creates a new SRV discovery instance. A nil resolver uses
// net.DefaultResolver.
func NewSRVDiscovery(resolver Resolver, logger logging.Logger) *SRVDiscovery {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &SRVDiscovery{
		resolver: resolver,
		logger:   logging.OrNop(logger),
	}
}

// srvServices lists the lookups in order of preference: LDAPS, then
// LDAP (StartTLS capable), then the global catalog.
var srvServices = []struct {
	service string
	useTLS  bool
}{
	{"_ldaps._tcp.", true},
	{"_ldap._tcp.", false},
	{"_gc._tcp.", false},
}

// Lookup returns the domain controllers advertised for domain in DNS. An
// empty result with a nil error means the domain publishes no SRV records.
func (d *SRVDiscovery) Lookup(ctx context.Context, domain string) ([]*ServerInfo, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	start := time.Now()
	var servers []*ServerInfo

	for _, record := range srvServices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found, err := d.lookupSRV(ctx, record.service+domain, record.useTLS)
		if err != nil {
			d.logger.Debug("SRV lookup failed, continuing to next service", map[string]any{
				"service": record.service + domain,
				"error":   err.Error(),
			})
			continue
		}
		servers = append(servers, found...)

		// LDAPS servers win outright
		if record.useTLS && len(found) > 0 {
			break
		}
	}

	sortServersByPriority(servers)

	d.logger.Debug("Server discovery completed", map[string]any{
		"domain":       domain,
		"duration":     time.Since(start).String(),
		"server_count": len(servers),
	})
	return servers, nil
}

// DiscoverServers is Lookup with the standard ports on the domain name
// itself as a fallback when DNS has no SRV records.
func (d *SRVDiscovery) DiscoverServers(ctx context.Context, domain string) ([]*ServerInfo, error) {
	servers, err := d.Lookup(ctx, domain)
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		d.logger.Debug("No SRV records found, using fallback servers", map[string]any{
			"domain": domain,
		})
		return fallbackServers(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")), nil
	}
	return servers, nil
}

func (d *SRVDiscovery) lookupSRV(ctx context.Context, service string, useTLS bool) ([]*ServerInfo, error) {
	_, records, err := d.resolver.LookupSRV(ctx, "", "", service)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup failed for %s: %w", service, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records found for %s", service)
	}

	servers := make([]*ServerInfo, 0, len(records))
	for _, srv := range records {
		servers = append(servers, &ServerInfo{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			UseTLS:   useTLS,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
			Source:   "srv",
		})
	}
	return servers, nil
}

func fallbackServers(domain string) []*ServerInfo {
	return []*ServerInfo{
		{Host: domain, Port: 636, UseTLS: true, Priority: 0, Weight: 100, Source: "fallback"},
		{Host: domain, Port: 389, UseTLS: false, Priority: 1, Weight: 100, Source: "fallback"},
	}
}

// sortServersByPriority orders servers by RFC 2782 priority, heaviest first
// within a priority.
func sortServersByPriority(servers []*ServerInfo) {
	sort.SliceStable(servers, func(i, j int) bool {
		if servers[i].Priority != servers[j].Priority {
			return servers[i].Priority < servers[j].Priority
		}
		return servers[i].Weight > servers[j].Weight
	})
}

// ValidateServerInfo validates server information.
func ValidateServerInfo(server *ServerInfo) error {
	if server == nil {
		return fmt.Errorf("server info cannot be nil")
	}
	if server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", server.Port)
	}
	return nil
}

// ParseLDAPURL parses an LDAP URL into ServerInfo.
func ParseLDAPURL(raw string) (*ServerInfo, error) {
	if raw == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid LDAP URL %q: %w", raw, err)
	}

	server := &ServerInfo{Host: u.Hostname(), Weight: 100, Source: "config"}
	switch u.Scheme {
	case "ldaps":
		server.UseTLS = true
		server.Port = 636
	case "ldap":
		server.Port = 389
	default:
		return nil, fmt.Errorf("unsupported scheme %q, must be ldap:// or ldaps://", u.Scheme)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port number: %s", p)
		}
		server.Port = port
	}

	return server, ValidateServerInfo(server)
}
