package mailer

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"retreat-booking-backend/config"
	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/pkg/logger"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Notifier renders a mail job and delivers it. Delivery failures are the
// caller's to handle; everything in this package is best-effort side effect,
// never business state.
type Notifier interface {
	Send(ctx context.Context, job *model.MailJob) error
}

// Templates the system sends. Each maps to a body in templates.go and the
// merge fields the producing service filled in.
const (
	TemplateOrderConfirmation  = "order_confirmation"
	TemplateEventDetail        = "event_detail"
	TemplateCancelation        = "cancelation"
	TemplateExchange           = "exchange"
	TemplateWaitQueueSeatFreed = "wait_queue_seat_freed"
)

// SMTPNotifier delivers through an SMTP relay.
type SMTPNotifier struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:    cfg,
		logger: logger.WithComponent("mailer"),
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, job *model.MailJob) error {
	body, err := renderTemplate(job.Template, job.Merge)
	if err != nil {
		return fmt.Errorf("render template %q: %w", job.Template, err)
	}

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return err
	}
	if err := msg.To(job.Recipient); err != nil {
		return err
	}
	msg.Subject(job.Subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(n.cfg.Host,
		mail.WithPort(n.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(n.cfg.User),
		mail.WithPassword(n.cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return err
	}

	n.logger.Info("mail sent",
		zap.String("template", job.Template),
		zap.String("recipient", job.Recipient))
	return nil
}

// LogNotifier is the development fallback when SMTP is disabled; jobs are
// logged instead of delivered.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logger.WithComponent("mailer")}
}

func (n *LogNotifier) Send(ctx context.Context, job *model.MailJob) error {
	body, err := renderTemplate(job.Template, job.Merge)
	if err != nil {
		return fmt.Errorf("render template %q: %w", job.Template, err)
	}
	n.logger.Info("mail (smtp disabled)",
		zap.String("template", job.Template),
		zap.String("recipient", job.Recipient),
		zap.String("subject", job.Subject),
		zap.String("body", body))
	return nil
}

func renderTemplate(name string, merge map[string]string) (string, error) {
	tmpl, ok := bodyTemplates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, merge); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var bodyTemplates = map[string]*template.Template{
	TemplateOrderConfirmation:  template.Must(template.New(TemplateOrderConfirmation).Parse(orderConfirmationBody)),
	TemplateEventDetail:        template.Must(template.New(TemplateEventDetail).Parse(eventDetailBody)),
	TemplateCancelation:        template.Must(template.New(TemplateCancelation).Parse(cancelationBody)),
	TemplateExchange:           template.Must(template.New(TemplateExchange).Parse(exchangeBody)),
	TemplateWaitQueueSeatFreed: template.Must(template.New(TemplateWaitQueueSeatFreed).Parse(waitQueueSeatFreedBody)),
}
