package accounts

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// EmailSender abstracts the outbound email collaborator. Verification and
// reset sends are fatal to their operation when they fail; welcome sends are
// fire-and-forget.
type EmailSender interface {
	SendVerificationEmail(to string, verificationLink string) error
	SendPasswordResetEmail(to string, resetLink string) error
	SendWelcomeEmail(to string, firstName string) error
}

// ConsoleEmailSender is a development implementation that logs emails to console
type ConsoleEmailSender struct{}

func (c *ConsoleEmailSender) SendVerificationEmail(to string, verificationLink string) error {
	log.Printf("\n=== EMAIL: Verification ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Verify your Meeting Assistant account")
	log.Printf("Body: Please verify your email by clicking: %s", verificationLink)
	log.Printf("===========================\n")
	return nil
}

func (c *ConsoleEmailSender) SendPasswordResetEmail(to string, resetLink string) error {
	log.Printf("\n=== EMAIL: Password Reset ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Password Reset Request")
	log.Printf("Body: Reset your password by clicking: %s", resetLink)
	log.Printf("==============================\n")
	return nil
}

func (c *ConsoleEmailSender) SendWelcomeEmail(to string, firstName string) error {
	log.Printf("\n=== EMAIL: Welcome ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Welcome to Meeting Assistant!")
	log.Printf("Body: Welcome aboard, %s", firstName)
	log.Printf("======================\n")
	return nil
}

// SMTPEmailSender delivers plain text mail over an SMTP relay.
type SMTPEmailSender struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

func (s *SMTPEmailSender) SendVerificationEmail(to string, verificationLink string) error {
	body := fmt.Sprintf("Thanks for signing up for Meeting Assistant.\r\n\r\n"+
		"Please verify your email address by visiting:\r\n%s\r\n", verificationLink)
	return s.send(to, "Verify your Meeting Assistant account", body)
}

func (s *SMTPEmailSender) SendPasswordResetEmail(to string, resetLink string) error {
	body := fmt.Sprintf("We received a request to reset your password.\r\n\r\n"+
		"Choose a new password by visiting:\r\n%s\r\n\r\n"+
		"If you did not request this, contact support.\r\n", resetLink)
	return s.send(to, "Password Reset Request", body)
}

func (s *SMTPEmailSender) SendWelcomeEmail(to string, firstName string) error {
	greeting := "Welcome to Meeting Assistant!"
	if firstName != "" {
		greeting = fmt.Sprintf("Welcome to Meeting Assistant, %s!", firstName)
	}
	body := greeting + "\r\n\r\nYour account is ready. Head over to the app to set up your scheduling preferences.\r\n"
	return s.send(to, "Welcome to Meeting Assistant!", body)
}

func (s *SMTPEmailSender) send(to, subject, body string) error {
	msg := strings.Builder{}
	fmt.Fprintf(&msg, "From: %s\r\n", s.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.Username != "" {
		host := s.Addr
		if idx := strings.Index(host, ":"); idx != -1 {
			host = host[:idx]
		}
		auth = smtp.PlainAuth("", s.Username, s.Password, host)
	}
	if err := smtp.SendMail(s.Addr, auth, s.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
