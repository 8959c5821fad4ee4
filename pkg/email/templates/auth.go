// Package templates holds the HTML bodies of transactional mail as templ
// components.
package templates

import (
	"html/template"
	"strconv"
	"time"

	"github.com/a-h/templ"
)

const layout = `{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222;max-width:560px;margin:0 auto">
<h2>{{.Title}}</h2>
<p>Hello {{.Name}},</p>
{{template "body" .}}
<p style="color:#777;font-size:12px">If you did not request this, you can ignore this message.</p>
</body></html>{{end}}`

var (
	resetLinkTmpl = template.Must(template.Must(template.New("reset").Parse(layout)).Parse(`{{define "body"}}
<p>We received a request to reset your password. The link below is valid for {{.Validity}}.</p>
<p><a href="{{.URL}}">Reset password</a></p>
<p>{{.URL}}</p>
{{end}}`))

	otpTmpl = template.Must(template.Must(template.New("otp").Parse(layout)).Parse(`{{define "body"}}
<p>Your password reset code is:</p>
<p style="font-size:28px;letter-spacing:6px"><strong>{{.Code}}</strong></p>
<p>The code expires in {{.Validity}}.</p>
{{end}}`))

	verifyTmpl = template.Must(template.Must(template.New("verify").Parse(layout)).Parse(`{{define "body"}}
<p>Confirm that {{.Email}} belongs to you. The link below is valid for {{.Validity}}.</p>
<p><a href="{{.URL}}">Verify email</a></p>
<p>{{.URL}}</p>
{{end}}`))
)

type view struct {
	Title    string
	Name     string
	URL      string
	Code     string
	Email    string
	Validity string
}

func component(t *template.Template, v view) templ.Component {
	if v.Name == "" {
		v.Name = "there"
	}
	return templ.FromGoHTML(t.Lookup("layout"), v)
}

// PasswordResetLink is the body of the reset-link email.
func PasswordResetLink(name, url string, ttl time.Duration) templ.Component {
	return component(resetLinkTmpl, view{Title: "Reset your password", Name: name, URL: url, Validity: humanize(ttl)})
}

// PasswordResetOTP is the body of the one-time code email.
func PasswordResetOTP(name, code string, ttl time.Duration) templ.Component {
	return component(otpTmpl, view{Title: "Your password reset code", Name: name, Code: code, Validity: humanize(ttl)})
}

// EmailVerification is the body of the address confirmation email.
func EmailVerification(name, email, url string, ttl time.Duration) templ.Component {
	return component(verifyTmpl, view{Title: "Verify your email", Name: name, Email: email, URL: url, Validity: humanize(ttl)})
}

func humanize(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return strconv.Itoa(int(d/time.Hour)) + " hours"
	case d >= time.Minute && d%time.Minute == 0:
		if d == time.Minute {
			return "1 minute"
		}
		return strconv.Itoa(int(d/time.Minute)) + " minutes"
	}
	return d.String()
}
