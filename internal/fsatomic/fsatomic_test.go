package fsatomic

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	t.Run("creates parent and file", func(t *testing.T) {
		fsys := afero.NewMemMapFs()

		require.NoError(t, WriteFile(fsys, "/etc/samba/smb.conf", []byte("[global]\n"), 0))

		data, err := afero.ReadFile(fsys, "/etc/samba/smb.conf")
		require.NoError(t, err)
		assert.Equal(t, "[global]\n", string(data))

		exists, err := afero.Exists(fsys, "/etc/samba/smb.conf.tmp")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("keeps existing mode", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, "/etc/krb5.conf", []byte("old"), 0o600))

		require.NoError(t, WriteFile(fsys, "/etc/krb5.conf", []byte("new"), 0o644))

		fi, err := fsys.Stat("/etc/krb5.conf")
		require.NoError(t, err)
		assert.Equal(t, "-rw-------", fi.Mode().Perm().String())

		data, err := afero.ReadFile(fsys, "/etc/krb5.conf")
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
	})

	t.Run("read-only filesystem", func(t *testing.T) {
		fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())
		assert.Error(t, WriteFile(fsys, "/etc/krb5.conf", []byte("x"), 0))
	})
}

func TestReadFile(t *testing.T) {
	fsys := afero.NewMemMapFs()

	data, exists, err := ReadFile(fsys, "/missing")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, data)

	require.NoError(t, afero.WriteFile(fsys, "/etc/sysconfig/network/config", []byte("A=1\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/etc/sysconfig/network/config.tmp", []byte("partial"), 0o644))

	data, exists, err = ReadFile(fsys, "/etc/sysconfig/network/config")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "A=1\n", string(data))

	stale, err := afero.Exists(fsys, "/etc/sysconfig/network/config.tmp")
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestTouch(t *testing.T) {
	fsys := afero.NewMemMapFs()

	created, err := Touch(fsys, "/etc/samba/include.conf")
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, afero.WriteFile(fsys, "/etc/samba/include.conf", []byte("x = y\n"), 0o644))

	created, err = Touch(fsys, "/etc/samba/include.conf")
	require.NoError(t, err)
	assert.False(t, created)

	data, err := afero.ReadFile(fsys, "/etc/samba/include.conf")
	require.NoError(t, err)
	assert.Equal(t, "x = y\n", string(data))
}
