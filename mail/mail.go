// ABOUTME: Outbound email for contract notifications and reminders
// ABOUTME: Defines the Mailer interface, message rendering from stored templates and a logging mailer
package mail

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	gosync "sync"

	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/render"
	"go.uber.org/zap"
)

// Message is one outbound email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	Body     string
	Template string
}

// Mailer delivers a message or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// DefaultTemplates are used when a slug has no stored template.
var DefaultTemplates = map[string]models.EmailTemplate{
	models.TemplateContractSent: {
		Slug:    models.TemplateContractSent,
		Subject: "Sponsorship agreement for {{conference_title}}",
		Body: "Hi {{signer_name}},\n\n" +
			"Thank you for sponsoring {{conference_title}} as {{tier_name}}. " +
			"The agreement for {{sponsor_name}} is ready for your signature:\n\n" +
			"{{signing_url}}\n\n" +
			"Best regards,\n{{sender_name}}",
	},
	models.TemplateContractReminder: {
		Slug:    models.TemplateContractReminder,
		Subject: "Reminder: sponsorship agreement for {{conference_title}}",
		Body: "Hi {{signer_name}},\n\n" +
			"This is reminder {{reminder_number}} that the sponsorship agreement for " +
			"{{sponsor_name}} is still waiting for your signature:\n\n" +
			"{{signing_url}}\n\n" +
			"Best regards,\n{{sender_name}}",
	},
	models.TemplateContractSigned: {
		Slug:    models.TemplateContractSigned,
		Subject: "Signed: sponsorship agreement for {{conference_title}}",
		Body: "Hi {{signer_name}},\n\n" +
			"Thank you. The sponsorship agreement for {{sponsor_name}} was signed on {{signed_at}}.\n\n" +
			"Best regards,\n{{sender_name}}",
	},
}

// Compose renders a template into a message. Unknown placeholders are kept
// as written so a broken template is visible to the recipient and in logs.
func Compose(tmpl models.EmailTemplate, to, toName string, vars map[string]string) (Message, []string) {
	subject, missSubject := render.Substitute(tmpl.Subject, vars)
	body, missBody := render.Substitute(tmpl.Body, vars)

	missing := missSubject
	for _, k := range missBody {
		if !slices.Contains(missing, k) {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return Message{
		To:       to,
		ToName:   toName,
		Subject:  strings.TrimSpace(subject),
		Body:     render.NormalizeText(body),
		Template: tmpl.Slug,
	}, missing
}

func validate(msg Message) error {
	fields := map[string]string{}
	if strings.TrimSpace(msg.To) == "" {
		fields["to"] = "is required"
	} else if !strings.Contains(msg.To, "@") {
		fields["to"] = "is not an email address"
	}
	if strings.TrimSpace(msg.Subject) == "" {
		fields["subject"] = "is required"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	m.logger.Info("email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("template", msg.Template),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

// Outbox keeps sent messages in memory. Fail makes the next sends return
// the given errors in order.
type Outbox struct {
	mu   gosync.Mutex
	sent []Message
	fail []error
}

func (o *Outbox) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.fail) > 0 {
		err := o.fail[0]
		o.fail = o.fail[1:]
		if err != nil {
			return err
		}
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *Outbox) Fail(errs ...error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail = append(o.fail, errs...)
}

func (o *Outbox) Sent() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.sent...)
}

// DispatchKey identifies one logical email so a retried send can be skipped.
func DispatchKey(template string, recordID fmt.Stringer, n int) string {
	return fmt.Sprintf("%s:%s:%d", template, recordID, n)
}
