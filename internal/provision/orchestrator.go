package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/isometry/terraform-provider-sambadc/internal/krb5conf"
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
	"github.com/isometry/terraform-provider-sambadc/internal/sambatool"
	"github.com/isometry/terraform-provider-sambadc/internal/smbconf"
)

// SettingsWriter persists the local service settings.
type SettingsWriter interface {
	Write(ctx context.Context) error
}

// DCProvisioner creates a forest or joins a domain.
type DCProvisioner interface {
	Provision(ctx context.Context, params sambatool.ProvisionParams) sambatool.Result
	Join(ctx context.Context, params sambatool.JoinParams) sambatool.Result
}

// KerberosWriter persists the Kerberos client configuration.
type KerberosWriter interface {
	Path() string
	Write(ctx context.Context, s krb5conf.Settings) error
}

// ResolverWriter registers the local resolver.
type ResolverWriter interface {
	Path() string
	Write(ctx context.Context) error
}

// NetworkReconfigurer applies the network configuration.
type NetworkReconfigurer interface {
	Command() string
	Reconfigure(ctx context.Context) error
}

// Dependencies are the collaborators of an Orchestrator. Resolver and
// Network are only used when the request manages DNS.
type Dependencies struct {
	Config        ServiceConfig
	LocalSettings SettingsWriter
	DC            DCProvisioner
	Kerberos      KerberosWriter
	Resolver      ResolverWriter
	Network       NetworkReconfigurer
	Progress      Progress
	Reporter      Reporter
	Logger        logging.Logger
}

// Outcome describes a finished run.
type Outcome struct {
	RunID    string
	Success  bool
	Executed []StageID
	Errors   []*StageError
}

// Orchestrator executes the stage plan of a Request. It keeps no state
// between runs.
type Orchestrator struct {
	deps Dependencies
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	if deps.Progress == nil {
		deps.Progress = NewLogProgress(deps.Logger)
	}
	if deps.Reporter == nil {
		deps.Reporter = &Messages{}
	}
	deps.Logger = logging.OrNop(deps.Logger)
	return &Orchestrator{deps: deps}
}

// Run executes every stage of req in order and reports whether the run
// completed.
func (o *Orchestrator) Run(ctx context.Context, req Request) bool {
	return o.Execute(ctx, req).Success
}

// Execute runs req and returns the details of the run.
func (o *Orchestrator) Execute(ctx context.Context, req Request) Outcome {
	outcome := Outcome{RunID: uuid.NewString()}

	logFields := req.LogFields()
	logFields["run_id"] = outcome.RunID
	log := logging.With(o.deps.Logger, map[string]any{"run_id": outcome.RunID})

	plan := BuildPlan(req.DNSManaged)
	log.Info("Starting provisioning run", logFields)

	o.deps.Progress.Start(Caption, plan)

	for _, stage := range plan {
		if err := ctx.Err(); err != nil {
			stageErr := cancelled(stage.ID, err)
			o.fail(log, &outcome, stageErr)
			return outcome
		}

		o.deps.Progress.NextStage()

		outcome.Executed = append(outcome.Executed, stage.ID)

		err := logging.LogOperation(log, string(stage.ID), map[string]any{"stage": stage.Label}, func() error {
			return o.runStage(ctx, stage, req)
		})
		if err == nil {
			continue
		}

		var stageErr *StageError
		if !errors.As(err, &stageErr) {
			stageErr = &StageError{Stage: stage.ID, Message: err.Error(), Cause: err}
		}

		// A failed join does not stop the run: the Kerberos and DNS stages
		// still execute, matching the established behavior of this tool.
		if stage.ID == StageProvisionOrJoin && req.Operation == OperationNewDC {
			o.deps.Reporter.Error(stageErr.Message)
			outcome.Errors = append(outcome.Errors, stageErr)
			log.Warn("Domain join failed, continuing", stageErr.LogFields())
			continue
		}

		o.fail(log, &outcome, stageErr)
		return outcome
	}

	o.deps.Progress.Finish()
	outcome.Success = true

	log.Info("Provisioning run completed", map[string]any{
		"stages": len(outcome.Executed),
		"errors": len(outcome.Errors),
	})
	return outcome
}

func (o *Orchestrator) fail(log logging.Logger, outcome *Outcome, err *StageError) {
	o.deps.Reporter.Error(err.Message)
	outcome.Errors = append(outcome.Errors, err)
	log.Error("Provisioning run aborted", err.LogFields())
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, req Request) error {
	switch stage.ID {
	case StageWriteLocalSettings:
		if err := o.deps.LocalSettings.Write(ctx); err != nil {
			return CannotWriteSettings(stage.ID, o.deps.Config.Path(), err)
		}
		return nil

	case StageProvisionOrJoin:
		return o.provisionOrJoin(ctx, req)

	case StageWriteKerberos:
		realm := o.deps.Config.GlobalGet(smbconf.KeyRealm, "")
		if err := o.deps.Kerberos.Write(ctx, krb5conf.FromRealm(realm)); err != nil {
			return CannotWriteSettings(stage.ID, o.deps.Kerberos.Path(), err)
		}
		return nil

	case StageWriteDNS:
		if err := o.deps.Resolver.Write(ctx); err != nil {
			return CannotWriteSettings(stage.ID, o.deps.Resolver.Path(), err)
		}
		return nil

	case StageUpdateNetwork:
		if err := o.deps.Network.Reconfigure(ctx); err != nil {
			return networkUpdateFailed(o.deps.Network.Command(), err)
		}
		return nil
	}

	return fmt.Errorf("unknown stage %q", stage.ID)
}

func (o *Orchestrator) provisionOrJoin(ctx context.Context, req Request) error {
	realm := o.deps.Config.GlobalGet(smbconf.KeyRealm, "")

	if req.Operation == OperationNewDC {
		result := o.deps.DC.Join(ctx, sambatool.JoinParams{
			Domain:     strings.ToLower(realm),
			Role:       req.JoinRole(),
			DNSBackend: req.DNSBackend,
			Username:   req.Credentials.Username,
			Password:   req.Credentials.Password,
		})
		if !result.Success {
			return joinFailed(result.Detail)
		}
		return nil
	}

	result := o.deps.DC.Provision(ctx, sambatool.ProvisionParams{
		Realm:         realm,
		Domain:        o.deps.Config.GlobalGet(smbconf.KeyWorkgroup, ""),
		AdminPassword: req.AdminPassword,
		ForestLevel:   req.ForestLevel,
		DNSBackend:    req.DNSBackend,
		UseRFC2307:    req.UseRFC2307,
	})
	if !result.Success {
		return provisionFailed(result.Detail)
	}
	return nil
}
