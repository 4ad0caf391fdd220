/*
Package ldap checks a domain controller over LDAP once it has been provisioned.

# Discovery

SRVDiscovery resolves the controllers of a domain from DNS, preferring
_ldaps._tcp, then _ldap._tcp, then _gc._tcp. Lookup reports only what DNS
advertises and is used as a preflight before joining a domain.
DiscoverServers falls back to ports 636 and 389 on the domain name itself.

# Verification

Verifier.Verify dials the configured URL, or each discovered server in turn,
using LDAPS, LDAP upgraded with StartTLS, or plain LDAP. It binds
anonymously, with a simple bind, or with GSSAPI when a Kerberos realm is
configured, then reads the root DSE and the objectSid of the default naming
context:

	info, err := ldap.NewVerifier(logger).Verify(ctx, &ldap.Config{
		URL:           "ldap://dc1.samdom.example.com",
		Username:      "Administrator",
		Password:      password,
		KerberosRealm: "SAMDOM.EXAMPLE.COM",
	})

Functional levels are reported by name (2008_R2, 2012_R2, ...), matching the
levels accepted when provisioning.

# Errors

Failures are returned as *LDAPError with a category; see GetErrorCategory.
An authentication failure stops the walk over discovered servers.
*/
package ldap
