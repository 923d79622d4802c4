package engine

import (
	"fmt"
	"net/url"
	"strings"
)

// CertificateError is a TLS failure the engine reported for a resource.
// The engine classifies the failure with a net-stack error code such as
// "ERR_CERT_AUTHORITY_INVALID"; the shell only decides whether to
// proceed anyway.
type CertificateError struct {
	// Code is the engine's error code, always ERR_CERT_* or ERR_SSL_*.
	Code string
	// URL is the resource the failure was reported for.
	URL *url.URL
	// Description is the engine's human-readable summary, may be empty.
	Description string
}

func (e *CertificateError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// overridableCodes are failures the user may bypass: the connection is
// still encrypted, the certificate just fails a local check. Everything
// else (revoked, malformed, pinning and protocol failures, unknown
// codes) is never overridable.
var overridableCodes = map[string]bool{
	"ERR_CERT_COMMON_NAME_INVALID":        true,
	"ERR_CERT_DATE_INVALID":               true,
	"ERR_CERT_AUTHORITY_INVALID":          true,
	"ERR_CERT_WEAK_SIGNATURE_ALGORITHM":   true,
	"ERR_CERT_WEAK_KEY":                   true,
	"ERR_CERT_NAME_CONSTRAINT_VIOLATION":  true,
	"ERR_CERT_VALIDITY_TOO_LONG":          true,
	"ERR_CERT_SYMANTEC_LEGACY":            true,
	"ERR_CERT_NO_REVOCATION_MECHANISM":    true,
	"ERR_CERT_UNABLE_TO_CHECK_REVOCATION": true,
}

// Overridable reports whether the user may proceed past this error.
func (e *CertificateError) Overridable() bool {
	return overridableCodes[e.Code]
}

// IsCertificateCode reports whether an engine net error code denotes a
// TLS failure. Drivers use it to tell certificate failures apart from
// ordinary load errors.
func IsCertificateCode(code string) bool {
	return strings.HasPrefix(code, "ERR_CERT_") || strings.HasPrefix(code, "ERR_SSL_")
}
