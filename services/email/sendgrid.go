package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/academia/core"
)

var (
	sgHost     = "https://api.sendgrid.com"
	sgEndpoint = "/v3/mail/send"

	// transient send failures get one retry per extra attempt
	maxSendAttempts = 3
	sendRetryDelay  = 500 * time.Millisecond
)

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(logger core.Logger) *sendgridService {
	from := core.Conf.DefaultFromEmail()
	return &sendgridService{
		key:        core.Conf.SendgridApiKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + core.Conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
				svc.send(*msg)
			}
		}()
	}
}

func (svc sendgridService) buildMail(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(asSGEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(asSGEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(asSGEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.TextContent),
		sgmail.NewContent("text/html", msg.HTMLContent),
	)

	// categorize by template so sendgrid stats split admission confirmations
	// from account mails
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}

	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.B64Content(),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

func (svc sendgridService) send(msg core.EmailMessage) {
	body := sgmail.GetRequestBody(svc.buildMail(msg))

	for attempt := 1; ; attempt++ {
		req := sendgrid.GetRequest(svc.key, sgEndpoint, sgHost)
		req.Method = http.MethodPost
		req.Body = body

		res, err := sendgrid.API(req)
		switch {
		case err != nil:
			svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
		case res.StatusCode >= http.StatusInternalServerError:
			svc.logger.Warn(fmt.Sprintf("sending email - status: %d - Body: %s", res.StatusCode, res.Body))
		case res.StatusCode >= http.StatusBadRequest:
			// our fault, retrying will not help
			svc.logger.Error(fmt.Sprintf("sending email - status: %d - Body: %s", res.StatusCode, res.Body))
			return
		default:
			return
		}

		if attempt >= maxSendAttempts {
			svc.logger.Error(fmt.Sprintf("giving up sending email %q after %d attempts", msg.Subject, attempt))
			return
		}
		time.Sleep(time.Duration(attempt) * sendRetryDelay)
	}
}

func asSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}
