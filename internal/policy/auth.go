package policy

import (
	"context"
	"net/url"

	"go.uber.org/zap"
)

// Credentials is an answered HTTP authentication challenge.
type Credentials struct {
	User     string
	Password string
}

// AuthenticationRequired asks the user for credentials for the given
// origin and realm. ok is false when the user dismissed the prompt or
// it was aborted; the driver then cancels the challenge.
func (p *Policy) AuthenticationRequired(ctx context.Context, pageURL *url.URL, realm string) (Credentials, bool) {
	p.log.Debug("authentication required",
		zap.String("url", urlString(pageURL)), zap.String("realm", realm))

	ans, err := p.ask(ctx, Question{
		Kind:  QuestionCredentials,
		Title: "Authentication required",
		Text:  realm,
		URL:   pageURL,
	})
	if err != nil {
		return Credentials{}, false
	}
	return Credentials{User: ans.User, Password: ans.Password}, true
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
