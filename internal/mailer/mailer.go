// Package mailer delivers login codes over SMTP.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"project_archive/internal/config"
)

type Sender interface {
	SendOTP(ctx context.Context, recipient, code string) error
}

type SMTPMailer struct {
	client      *mail.Client
	from        string
	otpLifetime time.Duration
}

func NewSMTPMailer(cfg config.SMTP, otpLifetime time.Duration) (*SMTPMailer, error) {
	const op = "mailer.NewSMTPMailer"

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SMTPMailer{
		client:      client,
		from:        cfg.Username,
		otpLifetime: otpLifetime,
	}, nil
}

func (m *SMTPMailer) SendOTP(ctx context.Context, recipient, code string) error {
	const op = "mailer.SendOTP"

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	minutes := int(m.otpLifetime.Minutes())

	msg.Subject("Your OTP Code")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("Your OTP code is: %s", code))
	msg.AddAlternativeString(mail.TypeTextHTML, otpHTML(code, minutes))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func otpHTML(code string, minutes int) string {
	return fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 0;">
	<table align="center" width="600" style="background-color: #ffffff; border-radius: 8px; padding: 20px;">
		<tr>
			<td align="center" style="padding-bottom: 20px;">
				<h2 style="color: #333333; margin: 0;">Project Archive</h2>
			</td>
		</tr>
		<tr>
			<td style="padding: 20px; text-align: center; color: #555555; font-size: 16px;">
				<p style="margin: 0 0 20px;">Your OTP code is:</p>
				<p style="font-size: 24px; font-weight: bold; color: #ffffff; background-color: #4CAF50; padding: 10px 20px; border-radius: 4px; display: inline-block;">%s</p>
				<p style="margin: 20px 0 0;">This code will expire in <strong>%d minutes</strong>.</p>
			</td>
		</tr>
		<tr>
			<td style="padding: 20px; text-align: center; color: #aaaaaa; font-size: 12px;">
				<p style="margin: 0;">If you didn't request this, you can ignore this email.</p>
			</td>
		</tr>
	</table>
</body>
</html>`, code, minutes)
}
