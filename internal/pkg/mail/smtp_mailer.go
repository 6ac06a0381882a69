package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/meetloom/billing-sync/internal/pkg/env"
)

// SendMail sends an HTML mail via the configured SMTP relay.
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendWelcomeEmail sends the post-verification welcome mail. The Discord
// invite comes from the environment so ops can rotate it without a deploy.
func SendWelcomeEmail(to, name string) error {
	if name == "" {
		name = "there"
	}
	discordLink := env.GetEnv("DISCORD_INVITE_LINK", "")
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your email address is verified and your account is ready.</p>",
		name,
	)
	if discordLink != "" {
		body += fmt.Sprintf("<p>Join our community: <a href=%q>%s</a></p>", discordLink, discordLink)
	}
	return SendMail(to, "Welcome aboard", body)
}
