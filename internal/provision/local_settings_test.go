package provision

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/terraform-provider-sambadc/internal/smbconf"
)

const existingSMBConf = `[global]
	workgroup = EXAMPLE
	realm = EXAMPLE.COM
	security = user
	idmap backend = tdb
	include = /etc/samba/dhcp.conf
`

func newLocalSettings(t *testing.T) (*LocalSettingsWriter, *smbconf.Config, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, smbconf.DefaultPath, []byte(existingSMBConf), 0o644))

	cfg, err := smbconf.Load(fsys, smbconf.DefaultPath)
	require.NoError(t, err)

	return NewLocalSettingsWriter(cfg, fsys, "", nil), cfg, fsys
}

func TestLocalSettingsWriter(t *testing.T) {
	w, cfg, fsys := newLocalSettings(t)

	require.NoError(t, w.Write(context.Background()))

	netlogon, err := cfg.Share("netlogon")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"path":      "/var/locks/sysvol/example.com/scripts",
		"read only": "No",
	}, netlogon)

	sysvol, err := cfg.Share("sysvol")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"path":      "/var/locks/sysvol",
		"read only": "No",
	}, sysvol)

	assert.Equal(t, "AUTO", cfg.GlobalGet(smbconf.KeySecurity, ""))
	assert.Equal(t, "samba_dsdb", cfg.GlobalGet(smbconf.KeyPassdbBackend, ""))
	assert.Equal(t, "Never", cfg.GlobalGet(smbconf.KeyMapToGuest, ""))
	assert.Equal(t, "unset", cfg.GlobalGet(smbconf.KeyIdmapBackend, "unset"))

	exists, err := afero.Exists(fsys, "/etc/samba/dhcp.conf")
	require.NoError(t, err)
	assert.True(t, exists, "missing include file is created")

	saved, err := smbconf.Load(fsys, smbconf.DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, "samba_dsdb", saved.GlobalGet(smbconf.KeyPassdbBackend, ""))
}

func TestLocalSettingsWriterIdempotent(t *testing.T) {
	w, _, fsys := newLocalSettings(t)

	require.NoError(t, w.Write(context.Background()))
	once, err := afero.ReadFile(fsys, smbconf.DefaultPath)
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background()))
	twice, err := afero.ReadFile(fsys, smbconf.DefaultPath)
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
}

func TestLocalSettingsWriterKeepsIncludeContent(t *testing.T) {
	w, _, fsys := newLocalSettings(t)
	require.NoError(t, afero.WriteFile(fsys, "/etc/samba/dhcp.conf", []byte("interfaces = eth0\n"), 0o644))

	require.NoError(t, w.Write(context.Background()))

	data, err := afero.ReadFile(fsys, "/etc/samba/dhcp.conf")
	require.NoError(t, err)
	assert.Equal(t, "interfaces = eth0\n", string(data))
}

func TestLocalSettingsWriterCustomSysvolRoot(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg, err := smbconf.Load(fsys, smbconf.DefaultPath)
	require.NoError(t, err)
	cfg.Seed("Samdom.Example.Com", "SAMDOM")

	w := NewLocalSettingsWriter(cfg, fsys, "/srv/sysvol", nil)
	w.Apply()

	netlogon, err := cfg.Share("netlogon")
	require.NoError(t, err)
	assert.Equal(t, "/srv/sysvol/samdom.example.com/scripts", netlogon["path"])
}

func TestLocalSettingsWriterPersistFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, smbconf.DefaultPath, []byte(existingSMBConf), 0o644))
	fsys := afero.NewReadOnlyFs(base)

	cfg, err := smbconf.Load(fsys, smbconf.DefaultPath)
	require.NoError(t, err)

	w := NewLocalSettingsWriter(cfg, fsys, "", nil)
	assert.Error(t, w.Write(context.Background()))
}
