package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/isometry/terraform-provider-sambadc/internal/ldap"
)

// Verify handles the verify command.
func Verify(ctx context.Context, opts *Options, cfg *ldap.Config) error {
	logger, err := opts.logger()
	if err != nil {
		return err
	}

	if cfg.KerberosConfig == "" {
		cfg.KerberosConfig = opts.Paths.WithDefaults().Krb5Conf
	}
	if cfg.AuthMethod() == ldap.AuthMethodSimpleBind && cfg.Password == "" {
		if cfg.Password, err = readPassword(EnvBindPassword, "Password of "+cfg.Username+":"); err != nil {
			return err
		}
	}

	info, err := newVerifier(logger).Verify(ctx, cfg)
	if err != nil {
		return fmt.Errorf("verification failed (%s): %w", ldap.GetErrorCategory(err), err)
	}

	out := opts.stdout()
	color.New(color.FgGreen).Fprintf(out, "Domain controller %s verified\n", info.Server)
	printFact(out, "DNS host name", info.DNSHostName)
	printFact(out, "Server", info.ServerName)
	printFact(out, "Naming context", info.DefaultNamingContext)
	printFact(out, "Domain SID", info.DomainSID)
	printFact(out, "Domain level", info.DomainFunctionality)
	printFact(out, "Forest level", info.ForestFunctionality)
	printFact(out, "DC level", info.DomainControllerFunctionality)
	printFact(out, "Synchronized", fmt.Sprint(info.IsSynchronized))
	return nil
}

func printFact(w io.Writer, name, value string) {
	if value == "" {
		value = "-"
	}
	fmt.Fprintf(w, "  %-16s %s\n", name+":", value)
}
