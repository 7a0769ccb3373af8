package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Sender is the mail transport contract.
type Sender interface {
	Send(subject, body, from string, to []string) error
}

type SMTPSender struct {
	Host string
	Port string
	User string
	Pass string
}

func NewSMTPSender(host, port, user, pass string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, User: user, Pass: pass}
}

func (s *SMTPSender) Send(subject, body, from string, to []string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		from, strings.Join(to, ", "), subject, body)

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	addr := s.Host + ":" + s.Port
	return smtp.SendMail(addr, auth, from, to, []byte(msg))
}
