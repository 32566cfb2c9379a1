// Package mail sends portal email over plain SMTP and builds the signed
// verification links embedded in it.
package mail

import (
	"fmt"
	"net/smtp"
	"os"
)

// Mailer sends HTML mail through the SMTP relay configured via SMTP_HOST,
// SMTP_PORT, SMTP_USER, SMTP_PASSWORD and MAIL_FROM.
type Mailer struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewFromEnv() *Mailer {
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	return &Mailer{
		host:     os.Getenv("SMTP_HOST"),
		port:     port,
		user:     os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     os.Getenv("MAIL_FROM"),
	}
}

func (m *Mailer) Send(to, subject, htmlBody string) error {
	if m.host == "" {
		return fmt.Errorf("mail: SMTP_HOST not configured")
	}
	msg := []byte("Subject: " + subject + "\r\n" +
		"From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n" +
		htmlBody + "\r\n")

	var a smtp.Auth
	if m.user != "" {
		a = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return smtp.SendMail(m.host+":"+m.port, a, m.from, []string{to}, msg)
}

// VerificationEmailBody renders the verification mail around the signed link.
func VerificationEmailBody(name, verifyURL string) string {
	return fmt.Sprintf(`<p>Hola %s,</p>
<p>Por favor verific&aacute; tu direcci&oacute;n de email haciendo clic en el siguiente enlace:</p>
<p><a href="%s">Verificar email</a></p>
<p>El enlace expira en 60 minutos. Si no creaste una cuenta, ignor&aacute; este mensaje.</p>`, name, verifyURL)
}
