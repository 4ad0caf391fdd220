package ldap

import (
	"fmt"
	"strings"
)

// RealmToBaseDN converts a Kerberos realm or DNS domain to the naming
// context of its domain partition, e.g. SAMDOM.EXAMPLE.COM becomes
// DC=samdom,DC=example,DC=com.
func RealmToBaseDN(realm string) (string, error) {
	realm = strings.TrimSuffix(strings.TrimSpace(realm), ".")
	if realm == "" {
		return "", fmt.Errorf("realm cannot be empty")
	}

	labels := strings.Split(strings.ToLower(realm), ".")
	rdns := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			return "", fmt.Errorf("realm %q contains an empty label", realm)
		}
		rdns = append(rdns, "DC="+EscapeDNValue(label))
	}
	return strings.Join(rdns, ","), nil
}

// EscapeDNValue escapes special characters in a DN attribute value according to RFC 4514.
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var result strings.Builder
	result.Grow(len(value) + 10)

	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';', '=':
			result.WriteRune('\\')
			result.WriteRune(r)
		case '#':
			if i == 0 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case 0:
			result.WriteString("\\00")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}
