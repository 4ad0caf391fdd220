package provision

import (
	"github.com/creasty/defaults"
)

// Paths locates the files and commands a run touches.
type Paths struct {
	SMBConf          string `yaml:"smb_conf" default:"/etc/samba/smb.conf"`
	Krb5Conf         string `yaml:"krb5_conf" default:"/etc/krb5.conf"`
	NetworkConfig    string `yaml:"network_config" default:"/etc/sysconfig/network/config"`
	SambaTool        string `yaml:"samba_tool" default:"samba-tool"`
	NetconfigCommand string `yaml:"netconfig_command" default:"/sbin/netconfig update"`
	PAMConfigCommand string `yaml:"pam_config_command" default:"/usr/sbin/pam-config"`
	SysvolRoot       string `yaml:"sysvol_root" default:"/var/locks/sysvol"`
	LockFile         string `yaml:"lock_file" default:"/run/sambadc.lock"`
}

// DefaultPaths returns the standard locations.
func DefaultPaths() Paths {
	var p Paths
	_ = defaults.Set(&p)
	return p
}

// WithDefaults fills every empty field with its default.
func (p Paths) WithDefaults() Paths {
	_ = defaults.Set(&p)
	return p
}
