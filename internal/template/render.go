// Package template renders e-mail bodies from placeholder templates.
//
// Supported placeholders:
//
//	{{user.email}}, {{reset.url}}, {{reset.expires_at}}, {{reset.expires_in}}
//
// Values are HTML-escaped before substitution.
package template

import (
	"html"
	"strconv"
	"strings"
	"time"
)

const ResetSubject = "Password Reset"

// DefaultResetBody is the body sent when no custom template is configured.
const DefaultResetBody = `<p>Click below to reset your password:</p><a href="{{reset.url}}">{{reset.url}}</a>` +
	`<p>This link expires in {{reset.expires_in}}.</p>`

// ResetData - values available to the reset e-mail template
type ResetData struct {
	Email     string
	URL       string
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

// RenderResetEmail substitutes ResetData into body. An empty body falls back
// to DefaultResetBody.
func RenderResetEmail(body string, data ResetData) string {
	if strings.TrimSpace(body) == "" {
		body = DefaultResetBody
	}

	expiresAt := ""
	if !data.ExpiresAt.IsZero() {
		expiresAt = data.ExpiresAt.UTC().Format(time.RFC3339)
	}

	pairs := []string{
		"{{user.email}}", html.EscapeString(data.Email),
		"{{reset.url}}", html.EscapeString(data.URL),
		"{{reset.expires_at}}", expiresAt,
		"{{reset.expires_in}}", humanDuration(data.ExpiresIn),
	}
	return strings.NewReplacer(pairs...).Replace(body)
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return strconv.Itoa(int(d/time.Hour)) + " hours"
	case d%time.Minute == 0:
		if d == time.Minute {
			return "1 minute"
		}
		return strconv.Itoa(int(d/time.Minute)) + " minutes"
	default:
		return d.String()
	}
}
