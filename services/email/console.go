// Package emailsvc provides the transports behind core.EmailService: sendgrid
// for deployments and a console writer for development, where admission
// confirmations and password resets just land in the terminal.
package emailsvc

import (
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/academia/core"
)

var (
	// SentMessages records every delivered message; tests assert on it.
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// consoleService renders messages and dumps them to the log instead of
// sending them anywhere. The rendered HTML alternative is summarized rather
// than printed; the text body is what a developer reads.
type consoleService struct {
	from       mail.Address
	subjPrefix string
	quiet      bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService() core.EmailService {
	return &consoleService{
		from:       core.Conf.DefaultFromEmail(),
		subjPrefix: "[" + core.Conf.AppName + "] ",
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc consoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		log.Printf("rendering email %q: %+v", msg.Subject, err)
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}

	if !svc.quiet {
		log.Println(svc.dump(*msg))
	}
	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
}

func (svc consoleService) dump(msg core.EmailMessage) string {
	out := new(strings.Builder)

	fmt.Fprintf(out, "From: %s\n", svc.from.String())
	fmt.Fprintf(out, "Date: %s\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(out, "Subject: %s\n", svc.subjPrefix+msg.Subject)
	fmt.Fprintf(out, "To: %s\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(out, "CC: %s\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(out, "BCC: %s\n", joinAddresses(msg.Bcc))
	}

	fmt.Fprintf(out, "\n%s\n", msg.TextContent)

	if msg.TemplateName != "" && msg.HTMLContent != "" {
		fmt.Fprintf(out, "\n[html alternative rendered from template %q, %d bytes]\n",
			msg.TemplateName, len(msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		fmt.Fprintf(out, "[attachment %s (%s), %d bytes]\n", at.Filename, at.ContentType, at.Content.Len())
	}
	return out.String()
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

// consoleServiceMock delivers synchronously and silently so tests can assert
// on SentMessages right after the call that triggers a mail.
type consoleServiceMock struct {
	consoleService
}

func NewConsoleServiceMock() core.EmailService {
	return &consoleServiceMock{
		consoleService: consoleService{
			from:       core.Conf.DefaultFromEmail(),
			subjPrefix: "[" + core.Conf.AppName + "] ",
			quiet:      true,
		},
	}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.deliver(msg)
	}
}
