package engine

import (
	"net/url"
	"testing"
)

func TestCertificateErrorOverridable(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ERR_CERT_AUTHORITY_INVALID", true},
		{"ERR_CERT_DATE_INVALID", true},
		{"ERR_CERT_COMMON_NAME_INVALID", true},
		{"ERR_CERT_REVOKED", false},
		{"ERR_CERT_INVALID", false},
		{"ERR_SSL_PROTOCOL_ERROR", false},
		{"ERR_SSL_PINNED_KEY_NOT_IN_CERT_CHAIN", false},
		// Unknown codes must fail closed.
		{"ERR_CERT_SOMETHING_NEW", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			e := &CertificateError{Code: tt.code}
			if got := e.Overridable(); got != tt.want {
				t.Errorf("Overridable(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestCertificateErrorError(t *testing.T) {
	u, _ := url.Parse("https://expired.example")
	e := &CertificateError{Code: "ERR_CERT_DATE_INVALID", URL: u, Description: "certificate has expired"}
	if got, want := e.Error(), "ERR_CERT_DATE_INVALID: certificate has expired"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &CertificateError{Code: "ERR_CERT_REVOKED"}
	if got, want := bare.Error(), "ERR_CERT_REVOKED"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsCertificateCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ERR_CERT_AUTHORITY_INVALID", true},
		{"ERR_SSL_PROTOCOL_ERROR", true},
		{"ERR_CONNECTION_REFUSED", false},
		{"ERR_NAME_NOT_RESOLVED", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCertificateCode(tt.code); got != tt.want {
			t.Errorf("IsCertificateCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
