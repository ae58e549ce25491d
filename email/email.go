package email

import (
	"fmt"
	"net/smtp"
	"os"
)

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewEmailService() *EmailService {
	return &EmailService{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		user:     os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     os.Getenv("SMTP_FROM"),
	}
}

// SendNewsletterWelcome sends the subscription confirmation mail. Callers
// treat failures as non-fatal; the subscription itself is already stored.
func (e *EmailService) SendNewsletterWelcome(to string) error {
	if e.host == "" {
		return fmt.Errorf("smtp not configured")
	}

	subject := "Welcome to the newsletter"
	body := fmt.Sprintf(`Hi!

Thanks for subscribing to our newsletter with %s.

You will receive a mail whenever a new post is published. You can
unsubscribe at any time from your subscription settings.
`, to)

	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", e.from, to, subject, body)

	auth := smtp.PlainAuth("", e.user, e.password, e.host)
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := smtp.SendMail(addr, auth, e.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}
