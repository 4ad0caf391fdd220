package provision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/terraform-provider-sambadc/internal/krb5conf"
	"github.com/isometry/terraform-provider-sambadc/internal/netconfig"
	"github.com/isometry/terraform-provider-sambadc/internal/sambatool"
	"github.com/isometry/terraform-provider-sambadc/internal/smbconf"
)

// recordingProgress records every progress call in order.
type recordingProgress struct {
	caption string
	stages  []Stage
	events  []string
}

func (p *recordingProgress) Start(caption string, stages []Stage) {
	p.caption = caption
	p.stages = stages
	p.events = append(p.events, "start")
}

func (p *recordingProgress) NextStage() { p.events = append(p.events, "next") }
func (p *recordingProgress) Finish()    { p.events = append(p.events, "finish") }

type fakeConfig struct {
	path    string
	globals map[string]string
	saveErr error
}

func newFakeConfig(realm, workgroup string) *fakeConfig {
	return &fakeConfig{
		path:    smbconf.DefaultPath,
		globals: map[string]string{smbconf.KeyRealm: realm, smbconf.KeyWorkgroup: workgroup},
	}
}

func (c *fakeConfig) Path() string { return c.path }

func (c *fakeConfig) GlobalGet(key, def string) string {
	if v, ok := c.globals[key]; ok {
		return v
	}
	return def
}

func (c *fakeConfig) GlobalSet(key, value string)        { c.globals[key] = value }
func (c *fakeConfig) GlobalDelete(key string)            { delete(c.globals, key) }
func (c *fakeConfig) SetShare(string, map[string]string) {}
func (c *fakeConfig) Save() error                        { return c.saveErr }

type fakeStep struct {
	path  string
	err   error
	calls int
}

func (s *fakeStep) Path() string    { return s.path }
func (s *fakeStep) Command() string { return s.path }

func (s *fakeStep) Write(context.Context) error {
	s.calls++
	return s.err
}

func (s *fakeStep) Reconfigure(context.Context) error {
	s.calls++
	return s.err
}

type fakeKerberos struct {
	fakeStep
	settings krb5conf.Settings
}

func (k *fakeKerberos) Write(_ context.Context, s krb5conf.Settings) error {
	k.calls++
	k.settings = s
	return k.err
}

type fakeDC struct {
	output    string
	provision []sambatool.ProvisionParams
	join      []sambatool.JoinParams
	cancel    context.CancelFunc // called during Provision when set
}

func (d *fakeDC) Provision(_ context.Context, p sambatool.ProvisionParams) sambatool.Result {
	d.provision = append(d.provision, p)
	if d.cancel != nil {
		d.cancel()
	}
	return sambatool.Result{Success: d.output == "", Detail: d.output}
}

func (d *fakeDC) Join(_ context.Context, p sambatool.JoinParams) sambatool.Result {
	d.join = append(d.join, p)
	return sambatool.Result{Success: d.output == "", Detail: d.output}
}

type fixture struct {
	config   *fakeConfig
	local    *fakeStep
	dc       *fakeDC
	kerberos *fakeKerberos
	resolver *fakeStep
	network  *fakeStep
	progress *recordingProgress
	messages *Messages
}

func newFixture() *fixture {
	f := &fixture{
		config:   newFakeConfig("EXAMPLE.COM", "EXAMPLE"),
		dc:       &fakeDC{},
		kerberos: &fakeKerberos{fakeStep: fakeStep{path: krb5conf.DefaultPath}},
		resolver: &fakeStep{path: netconfig.DefaultPath},
		network:  &fakeStep{path: netconfig.DefaultReconfigureCommand},
		progress: &recordingProgress{},
		messages: &Messages{},
		local:    &fakeStep{},
	}
	return f
}

func (f *fixture) orchestrator() *Orchestrator {
	return NewOrchestrator(Dependencies{
		Config:        f.config,
		LocalSettings: f.local,
		DC:            f.dc,
		Kerberos:      f.kerberos,
		Resolver:      f.resolver,
		Network:       f.network,
		Progress:      f.progress,
		Reporter:      f.messages,
	})
}

func newForestRequest(dnsManaged bool) Request {
	req := NewRequest(OperationNewForest)
	req.DNSManaged = dnsManaged
	req.AdminPassword = "Passw0rd!"
	return req
}

func TestOrchestratorNewForest(t *testing.T) {
	f := newFixture()

	outcome := f.orchestrator().Execute(context.Background(), newForestRequest(true))

	require.True(t, outcome.Success)
	assert.NotEmpty(t, outcome.RunID)
	assert.Equal(t, StageIDs(BuildPlan(true)), outcome.Executed)
	assert.Empty(t, f.messages.Errors)

	assert.Equal(t, Caption, f.progress.caption)
	assert.Len(t, f.progress.stages, 5)
	assert.Equal(t, []string{"start", "next", "next", "next", "next", "next", "finish"}, f.progress.events)

	require.Len(t, f.dc.provision, 1)
	assert.Empty(t, f.dc.join)
	assert.Equal(t, sambatool.ProvisionParams{
		Realm:         "EXAMPLE.COM",
		Domain:        "EXAMPLE",
		AdminPassword: "Passw0rd!",
		ForestLevel:   "2008_R2",
		DNSBackend:    "NONE",
		UseRFC2307:    true,
	}, f.dc.provision[0])

	assert.Equal(t, "EXAMPLE.COM", f.kerberos.settings.DefaultRealm)
	assert.Equal(t, "example.com", f.kerberos.settings.DefaultDomain)
	assert.Equal(t, 1, f.resolver.calls)
	assert.Equal(t, 1, f.network.calls)
}

func TestOrchestratorWithoutDNS(t *testing.T) {
	f := newFixture()

	require.True(t, f.orchestrator().Run(context.Background(), newForestRequest(false)))

	assert.Equal(t, 0, f.resolver.calls)
	assert.Equal(t, 0, f.network.calls)
	assert.Equal(t, []string{"start", "next", "next", "next", "finish"}, f.progress.events)
}

func TestOrchestratorLocalSettingsFailure(t *testing.T) {
	f := newFixture()
	f.local.err = errors.New("read-only file system")

	outcome := f.orchestrator().Execute(context.Background(), newForestRequest(true))

	assert.False(t, outcome.Success)
	assert.Equal(t, []StageID{StageWriteLocalSettings}, outcome.Executed)
	assert.Equal(t, []string{"Cannot write settings to /etc/samba/smb.conf."}, f.messages.Errors)
	assert.Empty(t, f.dc.provision)
	assert.Equal(t, 0, f.kerberos.calls)
	assert.Equal(t, 0, f.resolver.calls)
	assert.NotContains(t, f.progress.events, "finish")

	require.Len(t, outcome.Errors, 1)
	assert.ErrorContains(t, outcome.Errors[0].Unwrap(), "read-only")
}

func TestOrchestratorProvisionFailureAborts(t *testing.T) {
	f := newFixture()
	f.dc.output = "ERROR: Provision failed"

	outcome := f.orchestrator().Execute(context.Background(), newForestRequest(true))

	assert.False(t, outcome.Success)
	assert.Equal(t, []StageID{StageWriteLocalSettings, StageProvisionOrJoin}, outcome.Executed)
	assert.Equal(t, []string{"Error provisioning database. Check logs for details."}, f.messages.Errors)
	assert.Equal(t, 0, f.kerberos.calls)
	require.Len(t, outcome.Errors, 1)
	assert.Equal(t, "ERROR: Provision failed", outcome.Errors[0].Detail)
}

// A failed join is reported but does not stop the run. This keeps the
// long-standing behavior of the tool; it is not an endorsed contract.
func TestOrchestratorJoinFailureContinues(t *testing.T) {
	f := newFixture()
	f.dc.output = "Failed to bind - LDAP_INVALID_CREDENTIALS"

	req := NewRequest(OperationNewDC)
	req.ReadOnlyDC = true
	req.Credentials = Credentials{Username: "Administrator", Password: "secret"}

	outcome := f.orchestrator().Execute(context.Background(), req)

	assert.True(t, outcome.Success)
	assert.Equal(t, StageIDs(BuildPlan(true)), outcome.Executed)
	assert.Equal(t, []string{"Error joining to domain. Check logs for details."}, f.messages.Errors)
	assert.Equal(t, 1, f.kerberos.calls)
	assert.Equal(t, 1, f.network.calls)

	require.Len(t, f.dc.join, 1)
	assert.Equal(t, sambatool.JoinParams{
		Domain:     "example.com",
		Role:       "RODC",
		DNSBackend: "NONE",
		Username:   "Administrator",
		Password:   "secret",
	}, f.dc.join[0])
}

func TestOrchestratorWriteFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*fixture)
		message  string
		executed int
	}{
		{
			name:     "kerberos",
			setup:    func(f *fixture) { f.kerberos.err = errors.New("disk full") },
			message:  "Cannot write settings to /etc/krb5.conf.",
			executed: 3,
		},
		{
			name:     "dns",
			setup:    func(f *fixture) { f.resolver.err = errors.New("disk full") },
			message:  "Cannot write settings to /etc/sysconfig/network/config.",
			executed: 4,
		},
		{
			name:     "network update",
			setup:    func(f *fixture) { f.network.err = errors.New("exit status 1") },
			message:  "Cannot update network configuration: /sbin/netconfig update failed.",
			executed: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			outcome := f.orchestrator().Execute(context.Background(), newForestRequest(true))

			assert.False(t, outcome.Success)
			assert.Len(t, outcome.Executed, tt.executed)
			assert.Equal(t, []string{tt.message}, f.messages.Errors)
			assert.NotContains(t, f.progress.events, "finish")
		})
	}
}

func TestOrchestratorCancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := f.orchestrator().Execute(ctx, newForestRequest(true))

	assert.False(t, outcome.Success)
	assert.Empty(t, outcome.Executed)
	assert.Equal(t, 0, f.local.calls)
	require.Len(t, outcome.Errors, 1)
	assert.ErrorIs(t, outcome.Errors[0], context.Canceled)
	assert.Equal(t, []string{"start"}, f.progress.events)
}

func TestOrchestratorCancelledBetweenStages(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.dc.cancel = cancel

	outcome := f.orchestrator().Execute(ctx, newForestRequest(true))

	assert.False(t, outcome.Success)
	assert.Equal(t, []StageID{StageWriteLocalSettings, StageProvisionOrJoin}, outcome.Executed)
	assert.Equal(t, 0, f.kerberos.calls)
	assert.Equal(t, []string{"start", "next", "next"}, f.progress.events)
}

func TestOrchestratorRunIDsDiffer(t *testing.T) {
	f := newFixture()
	o := f.orchestrator()

	first := o.Execute(context.Background(), newForestRequest(false))
	second := o.Execute(context.Background(), newForestRequest(false))

	assert.NotEqual(t, first.RunID, second.RunID)
}

type scriptedRunner struct {
	calls []string
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	r.calls = append(r.calls, strings.Join(append([]string{name}, args...), " "))
	return "", nil
}

func TestOrchestratorEndToEnd(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, netconfig.DefaultPath,
		[]byte("NETCONFIG_DNS_STATIC_SERVERS=\"8.8.8.8 8.8.4.4\"\n"), 0o644))

	cfg, err := smbconf.Load(fsys, smbconf.DefaultPath)
	require.NoError(t, err)
	cfg.Seed("example.com", "EXAMPLE")

	runner := &scriptedRunner{}
	deps := NewDependencies(cfg, fsys, Paths{}, runner, nil)
	deps.Kerberos = krb5conf.NewWriter(fsys, krb5conf.DefaultPath, runner, nil, krb5conf.WithPAMConfig(""))
	progress := &recordingProgress{}
	deps.Progress = progress
	messages := &Messages{}
	deps.Reporter = messages

	req := NewRequest(OperationNewForest)
	req.AdminPassword = "Passw0rd!"

	outcome := NewOrchestrator(deps).Execute(context.Background(), req)

	require.True(t, outcome.Success, "errors: %v", messages.Errors)
	assert.Equal(t, StageIDs(BuildPlan(true)), outcome.Executed)
	assert.Len(t, progress.stages, 5)

	saved, err := smbconf.Load(fsys, smbconf.DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, "EXAMPLE.COM", saved.Realm())
	assert.Equal(t, "samba_dsdb", saved.GlobalGet(smbconf.KeyPassdbBackend, ""))

	krb5, err := afero.ReadFile(fsys, krb5conf.DefaultPath)
	require.NoError(t, err)
	assert.Contains(t, string(krb5), "default_realm = EXAMPLE.COM")

	servers, err := netconfig.NewStore(fsys, netconfig.DefaultPath).Get(netconfig.KeyDNSStaticServers)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 8.8.8.8 8.8.4.4", servers)

	require.Len(t, runner.calls, 2)
	assert.True(t, strings.HasPrefix(runner.calls[0], "samba-tool domain provision --server-role=dc --realm=EXAMPLE.COM --domain=EXAMPLE"))
	assert.Equal(t, "/sbin/netconfig update", runner.calls[1])
}
