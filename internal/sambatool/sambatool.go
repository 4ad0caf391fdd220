// Package sambatool drives samba-tool to provision a forest or join a domain.
package sambatool

import (
	"context"
	"strings"

	"github.com/isometry/terraform-provider-sambadc/internal/command"
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
)

// DefaultPath is the samba-tool binary used when none is configured.
const DefaultPath = "samba-tool"

// Tool invokes samba-tool. The returned text is the diagnostic output of the
// invocation; an empty string means it succeeded.
type Tool interface {
	Invoke(ctx context.Context, args ...string) string
}

// ExecTool runs samba-tool as a child process.
type ExecTool struct {
	Path   string
	Runner command.Runner
}

// NewExecTool returns a Tool running the samba-tool binary at path.
func NewExecTool(path string, runner command.Runner) *ExecTool {
	if path == "" {
		path = DefaultPath
	}
	return &ExecTool{Path: path, Runner: runner}
}

// Invoke returns "" when samba-tool exits 0. Otherwise it returns the trimmed
// output, or the error text when samba-tool printed nothing.
func (t *ExecTool) Invoke(ctx context.Context, args ...string) string {
	out, err := t.Runner.Run(ctx, t.Path, args...)
	if err == nil {
		return ""
	}
	if detail := strings.TrimSpace(out); detail != "" {
		return detail
	}
	return err.Error()
}

// Result is the outcome of a provision or join.
type Result struct {
	Success bool
	Detail  string
}

func resultFrom(output string) Result {
	return Result{Success: output == "", Detail: output}
}

// ProvisionParams are the arguments of a new-forest provision.
type ProvisionParams struct {
	Realm         string
	Domain        string
	AdminPassword string
	ForestLevel   string
	DNSBackend    string
	UseRFC2307    bool
}

// Args returns the samba-tool command line for p.
func (p ProvisionParams) Args() []string {
	args := []string{
		"domain", "provision",
		"--server-role=dc",
		"--realm=" + p.Realm,
		"--domain=" + p.Domain,
		"--adminpass=" + p.AdminPassword,
		"--function-level=" + strings.ToUpper(p.ForestLevel),
		"--dns-backend=" + p.DNSBackend,
	}
	if p.UseRFC2307 {
		args = append(args, "--use-rfc2307")
	}
	return args
}

// JoinParams are the arguments of a domain join.
type JoinParams struct {
	Domain     string
	Role       string
	DNSBackend string
	Username   string
	Password   string
}

// Args returns the samba-tool command line for p.
func (p JoinParams) Args() []string {
	return []string{
		"domain", "join",
		p.Domain,
		p.Role,
		"--dns-backend=" + p.DNSBackend,
		"--username=" + p.Username,
		"--password=" + p.Password,
	}
}

// Provisioner runs provision and join through a Tool. Neither operation is
// retried.
type Provisioner struct {
	tool   Tool
	logger logging.Logger
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(tool Tool, logger logging.Logger) *Provisioner {
	return &Provisioner{
		tool:   tool,
		logger: logging.OrNop(logger),
	}
}

// Provision creates a new forest.
func (p *Provisioner) Provision(ctx context.Context, params ProvisionParams) Result {
	p.logger.Info("Provisioning new forest", map[string]any{
		"realm":        params.Realm,
		"domain":       params.Domain,
		"forest_level": params.ForestLevel,
		"dns_backend":  params.DNSBackend,
		"use_rfc2307":  params.UseRFC2307,
	})

	result := resultFrom(p.tool.Invoke(ctx, params.Args()...))

	p.logger.Info("Samba provision result", map[string]any{
		"success": result.Success,
		"output":  result.Detail,
	})
	return result
}

// Join adds this host to an existing domain as a DC or RODC.
func (p *Provisioner) Join(ctx context.Context, params JoinParams) Result {
	p.logger.Info("Joining domain", map[string]any{
		"domain":      params.Domain,
		"role":        params.Role,
		"dns_backend": params.DNSBackend,
		"username":    params.Username,
	})

	result := resultFrom(p.tool.Invoke(ctx, params.Args()...))

	p.logger.Info("Samba domain join result", map[string]any{
		"success": result.Success,
		"output":  result.Detail,
	})
	return result
}
