package channels

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// EmailChannel sends notifications over SMTP with STARTTLS.
type EmailChannel struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
}

func NewEmailChannel(config map[string]string) (*EmailChannel, error) {
	c := &EmailChannel{
		host:     config["host"],
		username: config["username"],
		password: config["password"],
		from:     config["from"],
	}
	if config["to"] != "" {
		c.to = strings.Split(config["to"], ",")
		for i := range c.to {
			c.to[i] = strings.TrimSpace(c.to[i])
		}
	}
	port, err := strconv.Atoi(config["port"])
	if err != nil || port == 0 {
		port = 587
	}
	c.port = port

	if err := c.ValidateConfig(config); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *EmailChannel) ValidateConfig(config map[string]string) error {
	if c.host == "" {
		return fmt.Errorf("email channel: host is required")
	}
	if c.from == "" {
		return fmt.Errorf("email channel: from address is required")
	}
	if len(c.to) == 0 {
		return fmt.Errorf("email channel: at least one recipient is required")
	}
	return nil
}

func (c *EmailChannel) ConfigSchema() Schema {
	return Schema{
		{Name: "host", Type: "string", Required: true},
		{Name: "port", Type: "int", Required: false, Default: "587"},
		{Name: "username", Type: "string", Required: false},
		{Name: "password", Type: "string", Required: false},
		{Name: "from", Type: "string", Required: true},
		{Name: "to", Type: "string", Required: true},
	}
}

func (c *EmailChannel) Send(title, body string, level Level, timestamp time.Time) (bool, error) {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(level)), title)
	msg := buildMIMEMessage(c.from, c.to, subject, body, timestamp)
	if err := c.sendTLS(msg); err != nil {
		return false, err
	}
	return true, nil
}

func (c *EmailChannel) Test() (bool, error) {
	return c.Send("Test Notification", "This is a test notification from the UPS guardian.", LevelInfo, time.Now())
}

// sendTLS dials, upgrades with STARTTLS when the server offers it,
// authenticates if credentials are configured, and submits the message.
func (c *EmailChannel) sendTLS(msg []byte) error {
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("email channel: dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, c.host)
	if err != nil {
		return fmt.Errorf("email channel: smtp handshake failed: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: c.host}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("email channel: starttls failed: %w", err)
		}
	}

	if c.username != "" {
		auth := smtp.PlainAuth("", c.username, c.password, c.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("email channel: auth failed: %w", err)
		}
	}

	if err := client.Mail(c.from); err != nil {
		return fmt.Errorf("email channel: MAIL FROM failed: %w", err)
	}
	for _, rcpt := range c.to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("email channel: RCPT TO failed for %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("email channel: DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMIMEMessage(from string, to []string, subject, body string, timestamp time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", timestamp.Format(time.RFC1123Z))
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
