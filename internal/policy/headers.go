package policy

import "sort"

// Header is one outgoing HTTP header.
type Header struct {
	Name  string
	Value string
}

// CustomHeaders assembles the extra headers attached to every request:
// the tracking opt-out pair from content.do_not_track, then
// content.custom_headers (which may override them), then
// Accept-Language last when content.accept_language is set. Sorted by
// name so the result is stable.
func (p *Policy) CustomHeaders() []Header {
	cfg := p.config()

	dnt := "0"
	if cfg.Content.DoNotTrack {
		dnt = "1"
	}
	merged := map[string]string{
		"DNT":            dnt,
		"X-Do-Not-Track": dnt,
	}

	for name, value := range cfg.Content.CustomHeaders {
		merged[name] = value
	}

	if cfg.Content.AcceptLanguage != "" {
		merged["Accept-Language"] = cfg.Content.AcceptLanguage
	}

	headers := make([]Header, 0, len(merged))
	for name, value := range merged {
		headers = append(headers, Header{Name: name, Value: value})
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].Name < headers[j].Name })
	return headers
}

// HeaderMap returns CustomHeaders as a map for drivers that take one.
func (p *Policy) HeaderMap() map[string]string {
	headers := p.CustomHeaders()
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}
