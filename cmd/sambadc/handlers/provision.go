package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/isometry/terraform-provider-sambadc/internal/ldap"
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
	"github.com/isometry/terraform-provider-sambadc/internal/provider/planmodifiers"
	"github.com/isometry/terraform-provider-sambadc/internal/provider/validators"
	"github.com/isometry/terraform-provider-sambadc/internal/provision"
	"github.com/isometry/terraform-provider-sambadc/internal/smbconf"
)

// RunOptions are the inputs of provision and join.
type RunOptions struct {
	// RequestFile is a YAML document with the request fields, the realm,
	// the workgroup and a paths section.
	RequestFile string
	Realm       string
	Workgroup   string

	// Overrides applies the fields set on the command line.
	Overrides func(*provision.Request)
}

// requestFile is the layout of --request.
type requestFile struct {
	Realm     string          `yaml:"realm"`
	Workgroup string          `yaml:"workgroup"`
	Paths     provision.Paths `yaml:"paths"`

	provision.Request `yaml:",inline"`
}

// Provision handles the provision command.
func Provision(ctx context.Context, opts *Options, run RunOptions) error {
	return execute(ctx, opts, run, provision.OperationNewForest)
}

// Join handles the join command.
func Join(ctx context.Context, opts *Options, run RunOptions) error {
	return execute(ctx, opts, run, provision.OperationNewDC)
}

func execute(ctx context.Context, opts *Options, run RunOptions, op provision.Operation) error {
	logger, err := opts.logger()
	if err != nil {
		return err
	}

	fs := newFs()

	file, err := loadRequestFile(fs, run.RequestFile, op)
	if err != nil {
		return err
	}

	req := file.Request
	req.Operation = op
	if run.Overrides != nil {
		run.Overrides(&req)
	}

	if err := promptMissing(&req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	paths := mergePaths(opts.Paths, file.Paths)

	lock := newHostLock(paths.LockFile)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	config, err := smbconf.Load(fs, paths.SMBConf)
	if err != nil {
		return err
	}

	realm, err := seedConfig(config, firstNonEmpty(run.Realm, file.Realm), firstNonEmpty(run.Workgroup, file.Workgroup))
	if err != nil {
		return err
	}

	logger.Info("Starting provisioning run", map[string]any{
		"realm":     realm,
		"workgroup": config.Workgroup(),
		"smb_conf":  paths.SMBConf,
	})

	if op == provision.OperationNewDC {
		preflight(ctx, logger, opts, realm)
	}

	deps := provision.NewDependencies(config, fs, paths, newRunner(logger), logger)
	deps.Progress = NewBarProgress(opts.stdout())
	deps.Reporter = NewColorReporter(opts.stderr())

	if !provision.NewOrchestrator(deps).Run(ctx, req) {
		return ErrRunFailed
	}

	fmt.Fprintln(opts.stdout(), color.GreenString("Samba Active Directory domain controller for %s is configured.", realm))
	return nil
}

// loadRequestFile returns the defaults for op overlaid with path, if set.
func loadRequestFile(fs afero.Fs, path string, op provision.Operation) (*requestFile, error) {
	file := &requestFile{Request: provision.NewRequest(op)}
	if path == "" {
		return file, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("failed to parse request file %s: %w", path, err)
	}
	file.ForestLevel = strings.ToUpper(file.ForestLevel)
	file.DNSBackend = strings.ToUpper(file.DNSBackend)
	return file, nil
}

// mergePaths prefers flags over the request file, then the defaults.
func mergePaths(flags, file provision.Paths) provision.Paths {
	return provision.Paths{
		SMBConf:          firstNonEmpty(flags.SMBConf, file.SMBConf),
		Krb5Conf:         firstNonEmpty(flags.Krb5Conf, file.Krb5Conf),
		NetworkConfig:    firstNonEmpty(flags.NetworkConfig, file.NetworkConfig),
		SambaTool:        firstNonEmpty(flags.SambaTool, file.SambaTool),
		NetconfigCommand: firstNonEmpty(flags.NetconfigCommand, file.NetconfigCommand),
		PAMConfigCommand: firstNonEmpty(flags.PAMConfigCommand, file.PAMConfigCommand),
		SysvolRoot:       firstNonEmpty(flags.SysvolRoot, file.SysvolRoot),
		LockFile:         firstNonEmpty(flags.LockFile, file.LockFile),
	}.WithDefaults()
}

// seedConfig sets realm and workgroup on config and returns the realm the
// run will use. The workgroup defaults to the first label of the realm.
func seedConfig(config *smbconf.Config, realm, workgroup string) (string, error) {
	if realm == "" {
		realm = config.Realm()
		if realm == "" {
			return "", fmt.Errorf("no realm in %s: pass --realm", config.Path())
		}
	}
	if _, err := ldap.RealmToBaseDN(realm); err != nil {
		return "", fmt.Errorf("invalid realm %q: %w", realm, err)
	}

	if workgroup == "" && config.Workgroup() == "" {
		workgroup = planmodifiers.DeriveWorkgroup(realm)
	}
	if workgroup != "" {
		if err := validators.ValidateWorkgroup(strings.ToUpper(workgroup)); err != nil {
			return "", fmt.Errorf("invalid workgroup: %w (pass --workgroup)", err)
		}
	}

	config.Seed(realm, workgroup)
	return config.Realm(), nil
}

func promptMissing(req *provision.Request) error {
	var err error
	switch req.Operation {
	case provision.OperationNewForest:
		if req.AdminPassword == "" {
			if req.AdminPassword, err = readPassword(EnvAdminPassword, "Administrator password:"); err != nil {
				return err
			}
		}
	case provision.OperationNewDC:
		if req.Credentials.Username == "" {
			if req.Credentials.Username, err = askInput("Username:", "Administrator"); err != nil {
				return fmt.Errorf("failed to read username: %w", err)
			}
		}
		if req.Credentials.Password == "" {
			message := "Password of " + req.Credentials.Username + ":"
			if req.Credentials.Password, err = readPassword(EnvJoinPassword, message); err != nil {
				return err
			}
		}
	}
	return nil
}

// preflight warns when the domain to join publishes no domain controllers.
func preflight(ctx context.Context, logger logging.Logger, opts *Options, realm string) {
	servers, err := ldap.NewSRVDiscovery(newResolver(), logger).Lookup(ctx, realm)
	if err == nil && len(servers) > 0 {
		return
	}
	fmt.Fprintln(opts.stderr(), color.YellowString("Warning: no domain controllers found in DNS for %s.", realm))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
