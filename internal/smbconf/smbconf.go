// Package smbconf reads and writes the Samba service configuration (smb.conf).
//
// The file is held in memory between Load and Save. Section and parameter
// names are case-insensitive, as in Samba itself, and are written back in
// lower case.
package smbconf

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/ini.v1"

	"github.com/isometry/terraform-provider-sambadc/internal/fsatomic"
)

// DefaultPath is the standard location of smb.conf.
const DefaultPath = "/etc/samba/smb.conf"

const globalSection = "global"

// Well-known [global] parameters.
const (
	KeyRealm         = "realm"
	KeyWorkgroup     = "workgroup"
	KeyInclude       = "include"
	KeyServerRole    = "server role"
	KeySecurity      = "security"
	KeyPassdbBackend = "passdb backend"
	KeyMapToGuest    = "map to guest"
	KeyIdmapBackend  = "idmap backend"
)

// ErrNotFound is returned when a requested share is not defined.
var ErrNotFound = errors.New("share not found")

var loadOptions = ini.LoadOptions{
	Insensitive:         true,
	IgnoreInlineComment: true,
	KeyValueDelimiters:  "=",
}

// Config is an in-memory smb.conf.
type Config struct {
	fs   afero.Fs
	path string
	file *ini.File
}

// Load parses the smb.conf at path. A missing file yields an empty Config
// that Save will create.
func Load(fsys afero.Fs, path string) (*Config, error) {
	data, _, err := fsatomic.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if data == nil {
		data = []byte{}
	}

	file, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &Config{fs: fsys, path: path, file: file}, nil
}

// Path returns the file the configuration is persisted to.
func (c *Config) Path() string {
	return c.path
}

// Fs returns the filesystem the configuration lives on.
func (c *Config) Fs() afero.Fs {
	return c.fs
}

// GlobalGet returns a [global] parameter, or def when it is unset.
func (c *Config) GlobalGet(key, def string) string {
	sec, err := c.file.GetSection(globalSection)
	if err != nil || !sec.HasKey(key) {
		return def
	}
	return sec.Key(key).String()
}

// GlobalSet sets a [global] parameter, creating the section if needed.
func (c *Config) GlobalSet(key, value string) {
	c.file.Section(globalSection).Key(key).SetValue(value)
}

// GlobalDelete removes a [global] parameter. Absent keys are ignored.
func (c *Config) GlobalDelete(key string) {
	if sec, err := c.file.GetSection(globalSection); err == nil {
		sec.DeleteKey(key)
	}
}

// SetShare sets the given parameters on a share section, creating it if
// needed. Parameters not named in values are left untouched.
func (c *Config) SetShare(name string, values map[string]string) {
	sec := c.file.Section(name)
	for _, key := range slices.Sorted(maps.Keys(values)) {
		sec.Key(key).SetValue(values[key])
	}
}

// Share returns the parameters of a share section.
func (c *Config) Share(name string) (map[string]string, error) {
	if strings.EqualFold(name, globalSection) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	sec, err := c.file.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return sec.KeysHash(), nil
}

// Shares lists the defined share names in file order.
func (c *Config) Shares() []string {
	var names []string
	for _, sec := range c.file.Sections() {
		name := sec.Name()
		// Insensitive loading lower-cases the unnamed section to "default".
		if strings.EqualFold(name, ini.DefaultSection) || name == globalSection {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Seed sets the realm and workgroup in memory. Nothing is written until Save.
func (c *Config) Seed(realm, workgroup string) {
	if realm != "" {
		c.GlobalSet(KeyRealm, strings.ToUpper(realm))
	}
	if workgroup != "" {
		c.GlobalSet(KeyWorkgroup, strings.ToUpper(workgroup))
	}
}

// Realm returns the configured realm, or "" when unset.
func (c *Config) Realm() string {
	return c.GlobalGet(KeyRealm, "")
}

// Workgroup returns the configured workgroup, or "" when unset.
func (c *Config) Workgroup() string {
	return c.GlobalGet(KeyWorkgroup, "")
}

// IsDomainController reports whether the configuration describes an AD DC.
func (c *Config) IsDomainController() bool {
	role := strings.ToLower(c.GlobalGet(KeyServerRole, ""))
	if role == "active directory domain controller" || role == "dc" {
		return true
	}
	return strings.EqualFold(c.GlobalGet(KeyPassdbBackend, ""), "samba_dsdb")
}

// Bytes renders the configuration as it would be saved.
func (c *Config) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.file.WriteToIndent(&buf, "\t"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the configuration back to its path atomically.
func (c *Config) Save() error {
	data, err := c.Bytes()
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", c.path, err)
	}
	if err := fsatomic.WriteFile(c.fs, c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.path, err)
	}
	return nil
}
