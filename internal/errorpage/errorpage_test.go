package errorpage

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perchbrowser/perch/internal/engine"
)

func TestRenderEscapes(t *testing.T) {
	out, err := Render(Data{
		Title: "Error loading page: https://x.test/",
		URL:   "https://x.test/<script>",
		Error: "boom & bust",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Error loading page: https://x.test/")
	assert.Contains(t, out, "https://x.test/&lt;script&gt;")
	assert.Contains(t, out, "boom &amp; bust")
	assert.NotContains(t, out, "<script>")
}

func TestForCertificate(t *testing.T) {
	u, _ := url.Parse("https://expired.test/login")
	d := ForCertificate(&engine.CertificateError{
		Code:        "ERR_CERT_DATE_INVALID",
		URL:         u,
		Description: "certificate has expired",
	})

	assert.Equal(t, "Error loading page: https://expired.test/login", d.Title)
	assert.Equal(t, "https://expired.test/login", d.URL)
	assert.True(t, strings.Contains(d.Error, "ERR_CERT_DATE_INVALID"))

	out, err := Render(d)
	require.NoError(t, err)
	assert.Contains(t, out, "certificate has expired")
}

func TestForCertificateNilURL(t *testing.T) {
	d := ForCertificate(&engine.CertificateError{Code: "ERR_SSL_PROTOCOL_ERROR"})
	assert.Equal(t, "Error loading page: ", d.Title)

	_, err := Render(d)
	require.NoError(t, err)
}
