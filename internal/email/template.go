package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
)

// Template names one of the transactional mails.
type Template string

const (
	TemplateVerifyEmail     Template = "verify-email"
	TemplatePasswordReset   Template = "password-reset"
	TemplateHouseholdInvite Template = "household-invite"
	TemplateAdminInvite     Template = "admin-invite"
	TemplateTwoFactor       Template = "two-factor"
)

// Data fills a template. Link is required for every template.
type Data struct {
	Link          string
	HouseholdName string
	Username      string
}

// Mailer is implemented by Client and LogMailer.
type Mailer interface {
	SendTemplate(ctx context.Context, to string, tmpl Template, data Data) error
}

type rendered struct {
	subject string
	text    string
	html    string
}

func render(appName string, tmpl Template, data Data) (rendered, error) {
	if data.Link == "" {
		return rendered{}, fmt.Errorf("render %s: missing link", tmpl)
	}

	var subject, action, expiry string
	switch tmpl {
	case TemplateVerifyEmail:
		subject = fmt.Sprintf("Confirm your %s account", appName)
		action = "confirm your email address"
		expiry = "24 hours"
	case TemplatePasswordReset:
		subject = fmt.Sprintf("Reset your %s password", appName)
		action = "choose a new password"
		expiry = "15 minutes"
	case TemplateHouseholdInvite:
		if data.HouseholdName != "" {
			subject = fmt.Sprintf("You've been invited to %s on %s", data.HouseholdName, appName)
		} else {
			subject = fmt.Sprintf("You've been invited to a household on %s", appName)
		}
		action = "accept your invitation"
		expiry = "24 hours"
	case TemplateAdminInvite:
		subject = fmt.Sprintf("You've been invited to administer %s", appName)
		action = fmt.Sprintf("register as %s", data.Username)
		expiry = "24 hours"
	case TemplateTwoFactor:
		subject = fmt.Sprintf("Your %s sign-in link", appName)
		action = "finish signing in"
		expiry = "5 minutes"
	default:
		return rendered{}, fmt.Errorf("unknown email template %q", tmpl)
	}

	text := fmt.Sprintf("Click the link below to %s:\n\n%s\n\nThis link expires in %s.", action, data.Link, expiry)
	body := fmt.Sprintf(
		`<p>Click the link below to %s:</p><p><a href="%s">%s</a></p><p>This link expires in %s.</p>`,
		html.EscapeString(action), html.EscapeString(data.Link), html.EscapeString(action), expiry,
	)
	return rendered{subject: subject, text: text, html: body}, nil
}

// LogMailer writes mails to the log instead of sending them. It is used when
// no Postmark token is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendTemplate(_ context.Context, to string, tmpl Template, data Data) error {
	if _, err := render("", tmpl, data); err != nil {
		return err
	}
	m.Logger.Info("email not sent, postmark not configured", "to", to, "template", string(tmpl), "link", redactToken(data.Link))
	m.Logger.Debug("email link", "to", to, "template", string(tmpl), "link", data.Link)
	return nil
}

// redactToken blanks the token query parameter of a mail link.
func redactToken(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return "REDACTED"
	}
	q := u.Query()
	if !q.Has("token") {
		return link
	}
	q.Set("token", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
