package ldap

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"
)

// DecodeSID converts a binary objectSid to its S-1-5-21-... form.
func DecodeSID(raw []byte) (string, error) {
	// revision, sub-authority count and the 6-byte identifier authority
	if len(raw) < 8 {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(raw))
	}
	if want := 8 + 4*int(raw[1]); len(raw) < want {
		return "", fmt.Errorf("binary SID truncated: %d bytes, want %d", len(raw), want)
	}
	return objectsid.Decode(raw).String(), nil
}

// ExtractSID reads and decodes the objectSid attribute of entry.
func ExtractSID(entry *ldap.Entry) (string, error) {
	if entry == nil {
		return "", fmt.Errorf("LDAP entry cannot be nil")
	}

	raw := entry.GetRawAttributeValue("objectSid")
	if len(raw) == 0 {
		return "", fmt.Errorf("objectSid attribute not found in %s", entry.DN)
	}

	sid, err := DecodeSID(raw)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(sid, "S-") {
		return "", fmt.Errorf("invalid SID %q in %s", sid, entry.DN)
	}
	return sid, nil
}
