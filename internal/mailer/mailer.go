package mailer

import "context"

type Service interface {
	Send(ctx context.Context, e Email) error
}

type Email struct {
	FromName string
	From     string

	To []string
	Cc []string

	Subject  string
	TextBody string

	Headers map[string]string
}

func (e Email) AllRecipients() []string {
	out := make([]string, 0, len(e.To)+len(e.Cc))
	out = append(out, e.To...)
	out = append(out, e.Cc...)
	return out
}
