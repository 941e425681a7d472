package mail

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, to, subject, text string) error
}

type SendGridClient struct {
	apiKey   string
	from     string
	fromName string
	logger   *zap.Logger
}

func NewSendGridClient(apiKey, from, fromName string, logger *zap.Logger) *SendGridClient {
	return &SendGridClient{
		apiKey:   apiKey,
		from:     from,
		fromName: fromName,
		logger:   logging.OrNop(logger).Named("mail"),
	}
}

func (c *SendGridClient) Send(ctx context.Context, to, subject, text string) error {
	message, err := c.buildMessage(to, subject, text)
	if err != nil {
		return err
	}

	response, err := sendgrid.NewSendClient(c.apiKey).SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		c.logger.Error("sendgrid rejected message",
			zap.Int("status", response.StatusCode),
			zap.String("body", response.Body))
		return fmt.Errorf("sendgrid send failed: status=%d", response.StatusCode)
	}

	c.logger.Info("mail sent",
		zap.Int("status", response.StatusCode),
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

func (c *SendGridClient) buildMessage(to, subject, text string) (*mail.SGMailV3, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is empty")
	}
	if c.from == "" {
		return nil, fmt.Errorf("from address is empty")
	}
	if to == "" {
		return nil, fmt.Errorf("to address is empty")
	}

	htmlContent := fmt.Sprintf("<pre>%s</pre>", html.EscapeString(text))
	return mail.NewSingleEmail(
		mail.NewEmail(c.fromName, c.from),
		subject,
		mail.NewEmail("", to),
		text,
		htmlContent,
	), nil
}

// LogSender stands in for SendGrid when no API key is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logging.OrNop(logger).Named("mail")}
}

func (s *LogSender) Send(_ context.Context, to, subject, text string) error {
	s.logger.Info("mail not sent, no provider configured",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("text", text))
	return nil
}
