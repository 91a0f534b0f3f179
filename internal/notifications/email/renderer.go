package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"greenquote/internal/notifications/core"
	"greenquote/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// Audience selects which copy of a quote email is rendered.
type Audience string

const (
	// AudienceAccount is the lead notification for the business.
	AudienceAccount Audience = "account_quote"
	// AudienceCustomer is the estimate mailed to the prospect.
	AudienceCustomer Audience = "customer_quote"
)

// RenderedEmail holds the pre-rendered email content ready for transmission.
type RenderedEmail struct {
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	BodyText string `json:"body_text"`
}

// templateData is the struct passed into the templates.
type templateData struct {
	Subject     string
	QuoteID     string
	AccountName string
	Notes       string
	Summary     core.QuoteSummary
}

// Renderer renders quote emails from the embedded templates. Each audience
// has an HTML body (base.html wrapping the audience's blocks) and a plain
// text body.
type Renderer struct {
	htmlTemplates map[Audience]*template.Template
	textTemplates map[Audience]*texttemplate.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		htmlTemplates: make(map[Audience]*template.Template),
		textTemplates: make(map[Audience]*texttemplate.Template),
	}

	baseHTML, err := templateFS.ReadFile("templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read base.html: %w", err)
	}

	for _, a := range []Audience{AudienceAccount, AudienceCustomer} {
		name := string(a)

		htmlContent, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.html", name))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to read %s.html: %w", name, err)
		}
		htmlTmpl, err := template.New("base").Parse(string(baseHTML))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to parse base.html: %w", err)
		}
		if _, err := htmlTmpl.Parse(string(htmlContent)); err != nil {
			return nil, fmt.Errorf("renderer: failed to parse %s.html: %w", name, err)
		}
		r.htmlTemplates[a] = htmlTmpl

		txtContent, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.txt", name))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to read %s.txt: %w", name, err)
		}
		txtTmpl, err := texttemplate.New(name).Parse(string(txtContent))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to parse %s.txt: %w", name, err)
		}
		r.textTemplates[a] = txtTmpl
	}

	return r, nil
}

// Render renders the quote carried by msg for the given audience.
func (r *Renderer) Render(audience Audience, msg *types.QuoteMessage) (*RenderedEmail, error) {
	if msg == nil {
		return nil, fmt.Errorf("renderer: message is nil")
	}

	htmlTmpl, ok := r.htmlTemplates[audience]
	if !ok {
		return nil, fmt.Errorf("renderer: no HTML template for audience %q", audience)
	}
	txtTmpl, ok := r.textTemplates[audience]
	if !ok {
		return nil, fmt.Errorf("renderer: no text template for audience %q", audience)
	}

	data := buildTemplateData(audience, msg)

	var htmlBuf bytes.Buffer
	if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render HTML for %q: %w", audience, err)
	}

	var txtBuf bytes.Buffer
	if err := txtTmpl.Execute(&txtBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render text for %q: %w", audience, err)
	}

	return &RenderedEmail{
		Subject:  data.Subject,
		BodyHTML: htmlBuf.String(),
		BodyText: txtBuf.String(),
	}, nil
}

func buildTemplateData(audience Audience, msg *types.QuoteMessage) templateData {
	summary := core.Summarize(msg)

	var subject string
	switch audience {
	case AudienceCustomer:
		subject = "Your lawn care quote"
		if msg.AccountName != "" {
			subject += " from " + msg.AccountName
		}
	default:
		subject = fmt.Sprintf("%s: %s per visit", summary.Title, summary.PricePerVisit)
	}

	return templateData{
		Subject:     subject,
		QuoteID:     msg.Quote.ID,
		AccountName: msg.AccountName,
		Notes:       msg.Quote.Notes,
		Summary:     summary,
	}
}
