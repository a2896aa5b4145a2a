package app

import (
	"bytes"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

const layout = `{{define "layout"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #2c5f4f;">{{.Heading}}</h2>
{{template "body" .}}
<hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">
<p style="color: #666; font-size: 12px;">{{.Footer}}</p>
</div>{{end}}`

const contactBody = `{{define "body"}}<div style="background: #f5f5f5; padding: 20px; border-radius: 8px; margin: 20px 0;">
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
{{if .Phone}}<p><strong>Phone:</strong> {{.Phone}}</p>{{end}}
<p><strong>Subject:</strong> {{.Subject}}</p>
</div>
<h3 style="color: #2c5f4f;">Message:</h3>
<div style="line-height: 1.6;">{{.Message}}</div>{{end}}`

const subscribedBody = `{{define "body"}}<p>Thank you for bookmarking <strong>{{.Lodge}}</strong>.</p>
<p>You will receive notifications about:</p>
<ul>
<li>Special discount offers</li>
<li>Exclusive events</li>
<li>Seasonal promotions</li>
</ul>
{{if .Link}}<p style="margin-top: 20px;"><a href="{{.Link}}" style="background: #c46780; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">View Lodge Details</a></p>{{end}}{{end}}`

const noticeBody = `{{define "body"}}<div style="background: #f5f5f5; padding: 20px; border-radius: 8px;">
<p><strong>Lodge:</strong> {{.Lodge}}</p>
<p><strong>Lodge ID:</strong> {{.LodgeID}}</p>
<p><strong>Subscriber Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
<p><strong>Date:</strong> {{.Date}}</p>
</div>{{end}}`

const broadcastBody = `{{define "body"}}<div style="margin: 20px 0; line-height: 1.6;">{{.Message}}</div>{{end}}`

type templates struct {
	md goldmark.Markdown

	contactT    *template.Template
	subscribedT *template.Template
	noticeT     *template.Template
	broadcastT  *template.Template
}

func newTemplates() *templates {
	base := template.Must(template.New("mail").Parse(layout))
	with := func(body string) *template.Template {
		return template.Must(template.Must(base.Clone()).Parse(body))
	}
	return &templates{
		// hard wraps keep single newlines as line breaks
		md:          goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps())),
		contactT:    with(contactBody),
		subscribedT: with(subscribedBody),
		noticeT:     with(noticeBody),
		broadcastT:  with(broadcastBody),
	}
}

// markdown renders user text. Raw HTML in the input is dropped by goldmark.
func (t *templates) markdown(s string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.md.Convert([]byte(s), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func exec(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (t *templates) contact(r ContactRequest, subject string) (string, error) {
	msg, err := t.markdown(r.Message)
	if err != nil {
		return "", err
	}
	return exec(t.contactT, map[string]any{
		"Heading": "New Contact Form Submission",
		"Footer":  "This message was sent from the Lodge Finder contact form.",
		"Name":    r.Name,
		"Email":   r.Email,
		"Phone":   r.Phone,
		"Subject": subject,
		"Message": msg,
	})
}

func (t *templates) subscribed(r SubscribeRequest, link string) (string, error) {
	return exec(t.subscribedT, map[string]any{
		"Heading": "Bookmark Confirmed!",
		"Footer":  "You're receiving this because you subscribed to updates for " + or(r.LodgeName, "a lodge") + " on Lodge Finder.",
		"Lodge":   or(r.LodgeName, "our lodge"),
		"Link":    link,
	})
}

func (t *templates) notice(r SubscribeRequest) (string, error) {
	id := "N/A"
	if r.LodgeID.Valid() {
		id = formatID(int64(r.LodgeID.Value()))
	}
	return exec(t.noticeT, map[string]any{
		"Heading": "New Bookmark Subscription",
		"Footer":  "Subscription received from the Lodge Finder site.",
		"Lodge":   or(r.LodgeName, "Unknown"),
		"LodgeID": id,
		"Email":   r.Email,
		"Date":    time.Now().UTC().Format(time.RFC1123),
	})
}

func (t *templates) broadcast(r BroadcastRequest) (string, error) {
	msg, err := t.markdown(r.Message)
	if err != nil {
		return "", err
	}
	return exec(t.broadcastT, map[string]any{
		"Heading": "Update from " + or(r.LodgeName, "Lodge Finder"),
		"Footer":  "You're receiving this because you subscribed to updates for " + or(r.LodgeName, "a lodge") + " on Lodge Finder.",
		"Message": msg,
	})
}
