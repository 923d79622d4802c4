package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/perchbrowser/perch/internal/config"
)

func TestCustomHeaders(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []Header
	}{
		{
			name: "defaults opt out of tracking",
			want: []Header{
				{Name: "DNT", Value: "1"},
				{Name: "X-Do-Not-Track", Value: "1"},
			},
		},
		{
			name:   "tracking allowed",
			mutate: func(c *config.Config) { c.Content.DoNotTrack = false },
			want: []Header{
				{Name: "DNT", Value: "0"},
				{Name: "X-Do-Not-Track", Value: "0"},
			},
		},
		{
			name: "custom headers merge sorted",
			mutate: func(c *config.Config) {
				c.Content.CustomHeaders = map[string]string{"X-Shell": "perch"}
			},
			want: []Header{
				{Name: "DNT", Value: "1"},
				{Name: "X-Do-Not-Track", Value: "1"},
				{Name: "X-Shell", Value: "perch"},
			},
		},
		{
			name: "custom headers may override the opt-out",
			mutate: func(c *config.Config) {
				c.Content.CustomHeaders = map[string]string{"DNT": "0"}
			},
			want: []Header{
				{Name: "DNT", Value: "0"},
				{Name: "X-Do-Not-Track", Value: "1"},
			},
		},
		{
			name: "accept language wins over custom",
			mutate: func(c *config.Config) {
				c.Content.AcceptLanguage = "de-DE"
				c.Content.CustomHeaders = map[string]string{"Accept-Language": "en-US"}
			},
			want: []Header{
				{Name: "Accept-Language", Value: "de-DE"},
				{Name: "DNT", Value: "1"},
				{Name: "X-Do-Not-Track", Value: "1"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(snapshot(tt.mutate), nil)
			assert.Equal(t, tt.want, p.CustomHeaders())
		})
	}
}

func TestHeaderMap(t *testing.T) {
	p := New(snapshot(func(c *config.Config) {
		c.Content.AcceptLanguage = "en-GB"
	}), nil)

	assert.Equal(t, map[string]string{
		"DNT":             "1",
		"X-Do-Not-Track":  "1",
		"Accept-Language": "en-GB",
	}, p.HeaderMap())
}
