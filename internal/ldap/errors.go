package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory groups verification failures by what the operator has to fix.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// resultCode describes an LDAP result code the verifier expects to see from
// a Samba DC.
type resultCode struct {
	category ErrorCategory
	message  string
}

var resultCodes = map[uint16]resultCode{
	ldap.LDAPResultInvalidCredentials: {ErrorCategoryAuthentication, "Invalid credentials"},
	ldap.LDAPResultInappropriateAuthentication: {ErrorCategoryAuthentication,
		"Inappropriate authentication method"},
	// Samba refuses simple binds over plain LDAP unless
	// "ldap server require strong auth = no".
	ldap.LDAPResultStrongAuthRequired: {ErrorCategoryAuthentication,
		"Strong authentication required, use ldaps:// or StartTLS"},
	ldap.LDAPResultConfidentialityRequired: {ErrorCategoryAuthentication,
		"Confidentiality required, use ldaps:// or StartTLS"},

	ldap.LDAPResultInsufficientAccessRights: {ErrorCategoryPermission, "Insufficient access rights"},
	ldap.LDAPResultUnwillingToPerform:       {ErrorCategoryPermission, "Server is unwilling to perform the operation"},

	ldap.LDAPResultNoSuchObject:    {ErrorCategoryNotFound, "Requested object does not exist"},
	ldap.LDAPResultNoSuchAttribute: {ErrorCategoryNotFound, "Requested attribute does not exist"},

	ldap.LDAPResultServerDown:         {ErrorCategoryServer, "Server is down"},
	ldap.LDAPResultUnavailable:        {ErrorCategoryServer, "Server is unavailable"},
	ldap.LDAPResultBusy:               {ErrorCategoryServer, "Server is busy"},
	ldap.LDAPResultTimeLimitExceeded:  {ErrorCategoryServer, "Time limit exceeded"},
	ldap.LDAPResultAdminLimitExceeded: {ErrorCategoryServer, "Administrative limit exceeded"},

	ldap.ErrorNetwork:            {ErrorCategoryConnection, "Network error"},
	ldap.LDAPResultConnectError:  {ErrorCategoryConnection, "Connection error"},
	ldap.LDAPResultProtocolError: {ErrorCategoryConnection, "Protocol error"},
}

// connectionHints and authenticationHints classify errors that carry no
// LDAP result code, such as dial and Kerberos failures.
var (
	connectionHints     = []string{"connection", "network", "timeout", "no such host", "broken pipe"}
	authenticationHints = []string{"kerberos", "credentials", "password"}
)

// LDAPError is a failed step of a domain controller verification.
type LDAPError struct {
	Operation string // connect, bind, root DSE search, domain search
	Server    string // server URL, when known
	Category  ErrorCategory
	LDAPCode  uint16
	Message   string
	ServerMsg string // diagnostic message returned by the server
	Cause     error
}

func (e *LDAPError) Error() string {
	head := "LDAP " + e.Operation + " failed"
	if e.LDAPCode > 0 {
		head = fmt.Sprintf("%s (code %d)", head, e.LDAPCode)
	}

	parts := []string{head}
	for _, part := range []string{e.Server, e.Message} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if e.ServerMsg != "" && e.ServerMsg != e.Message {
		parts = append(parts, "server: "+e.ServerMsg)
	}

	return strings.Join(parts, " - ")
}

func (e *LDAPError) Unwrap() error {
	return e.Cause
}

// NewLDAPError classifies err as a failure of operation. It returns nil for a
// nil err.
func NewLDAPError(operation string, err error) *LDAPError {
	if err == nil {
		return nil
	}

	ldapErr := &LDAPError{
		Operation: operation,
		Category:  categorizeGenericError(err),
		Message:   err.Error(),
		Cause:     err,
	}

	if code, serverMsg, ok := resultCodeOf(err); ok {
		ldapErr.LDAPCode = code
		ldapErr.ServerMsg = serverMsg
		ldapErr.Category = categorizeError(code)
		ldapErr.Message = codeMessage(code)
	}

	return ldapErr
}

// wrapError wraps err for operation against server. Errors that are already
// an *LDAPError keep their original operation and server.
func wrapError(operation, server string, err error) error {
	if err == nil {
		return nil
	}
	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) {
		return err
	}
	ldapErr = NewLDAPError(operation, err)
	ldapErr.Server = server
	return ldapErr
}

func resultCodeOf(err error) (code uint16, serverMsg string, ok bool) {
	var resultErr *ldap.Error
	if !errors.As(err, &resultErr) || resultErr.ResultCode == 0 {
		return 0, "", false
	}
	if resultErr.Err != nil {
		serverMsg = resultErr.Err.Error()
	}
	return resultErr.ResultCode, serverMsg, true
}

func categorizeError(code uint16) ErrorCategory {
	if rc, ok := resultCodes[code]; ok {
		return rc.category
	}
	return ErrorCategoryUnknown
}

func categorizeGenericError(err error) ErrorCategory {
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, connectionHints):
		return ErrorCategoryConnection
	case containsAny(msg, authenticationHints):
		return ErrorCategoryAuthentication
	default:
		return ErrorCategoryUnknown
	}
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func codeMessage(code uint16) string {
	if rc, ok := resultCodes[code]; ok {
		return rc.message
	}
	return ldap.LDAPResultCodeMap[code]
}

// GetErrorCategory returns the category of err.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) {
		return ldapErr.Category
	}
	if code, _, ok := resultCodeOf(err); ok {
		return categorizeError(code)
	}
	return categorizeGenericError(err)
}

// IsAuthenticationError reports whether err means the bind credentials were
// rejected or unusable.
func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// IsConnectionError reports whether err means the server could not be reached.
func IsConnectionError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryConnection
}
