package lib

import (
	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

func NewSMTPClient(c SMTPConfig) (*mail.Client, error) {
	port := c.Port
	if port == 0 {
		port = 587
	}
	return mail.NewClient(
		c.Host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(c.Username),
		mail.WithPassword(c.Password),
	)
}
