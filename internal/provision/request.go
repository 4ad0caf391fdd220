package provision

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/creasty/defaults"
	"github.com/hashicorp/go-multierror"
)

// Operation selects between creating a forest and joining one.
type Operation string

const (
	// OperationNewForest provisions a new forest with this host as its first DC.
	OperationNewForest Operation = "new_forest"
	// OperationNewDC joins this host to an existing domain as an additional DC.
	OperationNewDC Operation = "new_dc"
)

// ForestLevels lists the functional levels accepted by samba-tool.
var ForestLevels = []string{"2000", "2003", "2008", "2008_R2", "2012", "2012_R2", "2016"}

// DNSBackends lists the DNS backends accepted by samba-tool.
var DNSBackends = []string{"NONE", "SAMBA_INTERNAL", "BIND9_FLATFILE", "BIND9_DLZ"}

// Credentials authenticate a domain join.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// String never prints the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username:%q}", c.Username)
}

// Request describes one provisioning run. Realm and workgroup are not part of
// the request: every stage reads them from the service configuration.
type Request struct {
	Operation     Operation   `yaml:"operation" default:"new_forest"`
	DNSManaged    bool        `yaml:"dns_managed" default:"true"`
	ReadOnlyDC    bool        `yaml:"read_only_dc"`
	UseRFC2307    bool        `yaml:"use_rfc2307" default:"true"`
	ForestLevel   string      `yaml:"forest_level" default:"2008_R2"`
	DNSBackend    string      `yaml:"dns_backend" default:"NONE"`
	AdminPassword string      `yaml:"admin_password"`
	Credentials   Credentials `yaml:"credentials"`
}

// NewRequest returns a Request for op with every other field at its default.
func NewRequest(op Operation) Request {
	req := Request{}
	if err := defaults.Set(&req); err != nil {
		// Only reachable with malformed struct tags.
		panic(fmt.Sprintf("provision: invalid request defaults: %v", err))
	}
	if op != "" {
		req.Operation = op
	}
	return req
}

// JoinRole returns the samba-tool join role for the request.
func (r Request) JoinRole() string {
	if r.ReadOnlyDC {
		return "RODC"
	}
	return "DC"
}

// Validate reports every problem with the request at once.
func (r Request) Validate() error {
	var result *multierror.Error

	switch r.Operation {
	case OperationNewForest:
		if r.AdminPassword == "" {
			result = multierror.Append(result, errors.New("admin password is required to provision a new forest"))
		}
	case OperationNewDC:
		if r.Credentials.Username == "" {
			result = multierror.Append(result, errors.New("a username is required to join a domain"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown operation %q: must be one of %s, %s",
			r.Operation, OperationNewForest, OperationNewDC))
	}

	if !containsFold(ForestLevels, r.ForestLevel) {
		result = multierror.Append(result, fmt.Errorf("unknown forest level %q: must be one of %s",
			r.ForestLevel, strings.Join(ForestLevels, ", ")))
	}

	if !containsFold(DNSBackends, r.DNSBackend) {
		result = multierror.Append(result, fmt.Errorf("unknown DNS backend %q: must be one of %s",
			r.DNSBackend, strings.Join(DNSBackends, ", ")))
	}

	return result.ErrorOrNil()
}

func containsFold(values []string, v string) bool {
	return slices.ContainsFunc(values, func(s string) bool {
		return strings.EqualFold(s, v)
	})
}

// LogFields returns the non-secret request fields for structured logs.
func (r Request) LogFields() map[string]any {
	fields := map[string]any{
		"operation":    string(r.Operation),
		"dns_managed":  r.DNSManaged,
		"use_rfc2307":  r.UseRFC2307,
		"forest_level": r.ForestLevel,
		"dns_backend":  r.DNSBackend,
	}
	if r.Operation == OperationNewDC {
		fields["join_role"] = r.JoinRole()
		fields["join_username"] = r.Credentials.Username
	}
	return fields
}
