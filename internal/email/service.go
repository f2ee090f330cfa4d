package email

import (
	"fmt"
	"net/smtp"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send sendFunc
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

// SendItemsRemoved tells a customer which cart items were dropped at checkout
func (s *Service) SendItemsRemoved(to string, items []RemovedItem) error {
	subject := fmt.Sprintf("%d item(s) were removed from your cart", len(items))
	return s.deliver(to, subject, BuildItemsRemovedBody(items))
}

func (s *Service) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := s.send(addr, nil, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}
