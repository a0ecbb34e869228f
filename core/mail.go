package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	templates     tmplCache
	tmplInit      sync.Once
	tmplSourceFS  fs.FS
	tmplSourceDir = "assets/templates"
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: tmplCacheEntry}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// SetTemplateFS sets the filesystem email templates are parsed from;
// must be called before the first Render.
func SetTemplateFS(fsys fs.FS) { tmplSourceFS = fsys }

func loadTemplates() error {
	templates = make(tmplCache)
	if tmplSourceFS == nil {
		return nil
	}

	entries, err := fs.ReadDir(tmplSourceFS, tmplSourceDir)
	if err != nil {
		return errors.Wrap(err, "reading templates dir")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fname := entry.Name()
		ext := path.Ext(fname)
		name := strings.TrimSuffix(fname, ext)
		fpath := path.Join(tmplSourceDir, fname)

		cache, ok := templates[name]
		if !ok {
			cache = make(tmplCacheEntry, 2)
			templates[name] = cache
		}

		switch ext {
		case ".txt":
			tmpl, err := texttmpl.ParseFS(tmplSourceFS, fpath)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", fpath)
			}
			cache[ext] = tmpl
		case ".gohtml":
			tmpl, err := htmltmpl.ParseFS(tmplSourceFS, fpath)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", fpath)
			}
			cache[ext] = tmpl
		}
	}
	return nil
}

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		FrontendBaseURL: Conf.FrontendBaseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (m *EmailMessage) renderText() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".txt")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.getContextData()); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML() error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.getContextData()); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render renders the message's text and HTML contents from its template (if any).
func (m *EmailMessage) Render() error {
	var err error
	tmplInit.Do(func() { err = loadTemplates() })
	if err != nil {
		return err
	}

	if err = m.renderText(); err != nil {
		return errors.Wrap(err, "rendering text content")
	}
	if err = m.renderHTML(); err != nil {
		return errors.Wrap(err, "rendering HTML content")
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool {
	return len(m.To) > 0 || len(m.Cc) > 0 || len(m.Bcc) > 0
}

func (m *EmailMessage) HasContent() bool {
	return m.TextContent != "" || m.HTMLContent != ""
}

func (m *EmailMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}

func (a Attachment) B64Content() string {
	return base64.StdEncoding.EncodeToString(a.Content.Bytes())
}
