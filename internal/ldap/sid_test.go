package ldap

import (
	"encoding/binary"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeSID builds the binary form of S-1-<authority>-<subs...>.
func encodeSID(authority byte, subs ...uint32) []byte {
	raw := []byte{1, byte(len(subs)), 0, 0, 0, 0, 0, authority}
	for _, sub := range subs {
		raw = binary.LittleEndian.AppendUint32(raw, sub)
	}
	return raw
}

func sidEntry(dn string, raw []byte) *ldap.Entry {
	return &ldap.Entry{
		DN: dn,
		Attributes: []*ldap.EntryAttribute{{
			Name:       "objectSid",
			Values:     []string{string(raw)},
			ByteValues: [][]byte{raw},
		}},
	}
}

func TestDecodeSID(t *testing.T) {
	sid, err := DecodeSID(encodeSID(5, 21, 1004336348, 1177238915, 682003330))
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-21-1004336348-1177238915-682003330", sid)

	_, err = DecodeSID([]byte{1, 4, 0})
	assert.Error(t, err)

	_, err = DecodeSID(encodeSID(5, 21)[:10])
	assert.Error(t, err, "sub-authority count larger than the data")
}

func TestExtractSID(t *testing.T) {
	entry := sidEntry("DC=samdom,DC=example,DC=com", encodeSID(5, 21, 1, 2, 3))
	sid, err := ExtractSID(entry)
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-21-1-2-3", sid)

	_, err = ExtractSID(nil)
	assert.Error(t, err)

	_, err = ExtractSID(ldap.NewEntry("DC=samdom,DC=example,DC=com", nil))
	assert.ErrorContains(t, err, "objectSid attribute not found")
}
