// Package errorpage renders the HTML shown in place of a page that
// failed to load.
package errorpage

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/perchbrowser/perch/internal/engine"
)

//go:embed error.html
var errorHTML string

var tmpl = template.Must(template.New("error").Parse(errorHTML))

// Data fills the error page template. All fields are escaped by
// html/template on render.
type Data struct {
	Title string
	URL   string
	Error string
	Icon  string
}

// Render returns the error page document for the given data.
func Render(d Data) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, d); err != nil {
		return "", fmt.Errorf("render error page: %w", err)
	}
	return b.String(), nil
}

// ForCertificate builds the page data for a certificate error.
func ForCertificate(certErr *engine.CertificateError) Data {
	var u string
	if certErr.URL != nil {
		u = certErr.URL.String()
	}
	return Data{
		Title: fmt.Sprintf("Error loading page: %s", u),
		URL:   u,
		Error: certErr.Error(),
		Icon:  "⚠",
	}
}
