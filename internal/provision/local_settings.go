package provision

import (
	"context"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/isometry/terraform-provider-sambadc/internal/fsatomic"
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
	"github.com/isometry/terraform-provider-sambadc/internal/smbconf"
)

// ServiceConfig is the Samba service configuration store.
type ServiceConfig interface {
	Path() string
	GlobalGet(key, def string) string
	GlobalSet(key, value string)
	GlobalDelete(key string)
	SetShare(name string, values map[string]string)
	Save() error
}

// LocalSettingsWriter applies the domain controller shares and globals to the
// service configuration and persists it.
type LocalSettingsWriter struct {
	config     ServiceConfig
	fs         afero.Fs
	sysvolRoot string
	logger     logging.Logger
}

// NewLocalSettingsWriter creates a LocalSettingsWriter. Include files are
// checked on fsys; sysvolRoot defaults to /var/locks/sysvol.
func NewLocalSettingsWriter(config ServiceConfig, fsys afero.Fs, sysvolRoot string, logger logging.Logger) *LocalSettingsWriter {
	if sysvolRoot == "" {
		sysvolRoot = DefaultPaths().SysvolRoot
	}
	return &LocalSettingsWriter{
		config:     config,
		fs:         fsys,
		sysvolRoot: sysvolRoot,
		logger:     logging.OrNop(logger),
	}
}

// Apply sets the shares and globals in memory without saving. A missing
// include file is created empty; failing to create it is only logged.
func (w *LocalSettingsWriter) Apply() {
	realm := strings.ToLower(w.config.GlobalGet(smbconf.KeyRealm, ""))

	w.config.SetShare("netlogon", map[string]string{
		"path":      path.Join(w.sysvolRoot, realm, "scripts"),
		"read only": "No",
	})
	w.config.SetShare("sysvol", map[string]string{
		"path":      w.sysvolRoot,
		"read only": "No",
	})

	w.config.GlobalSet(smbconf.KeySecurity, "AUTO")
	w.config.GlobalSet(smbconf.KeyPassdbBackend, "samba_dsdb")
	w.config.GlobalSet(smbconf.KeyMapToGuest, "Never")
	w.config.GlobalDelete(smbconf.KeyIdmapBackend)

	include := w.config.GlobalGet(smbconf.KeyInclude, "")
	if include == "" {
		return
	}
	created, err := fsatomic.Touch(w.fs, include)
	switch {
	case err != nil:
		w.logger.Warn("Failed to create include file", map[string]any{
			"path":  include,
			"error": err.Error(),
		})
	case created:
		w.logger.Info("Created missing include file", map[string]any{
			"path": include,
		})
	}
}

// Write applies the settings and saves the service configuration.
func (w *LocalSettingsWriter) Write(_ context.Context) error {
	w.Apply()
	return w.config.Save()
}
