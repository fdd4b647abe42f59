package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/datatecnica/sampleshare/internal/config"
)

// sampleDisplayLimit caps how many sample ids are listed in a multi-sample
// notice before truncating.
const sampleDisplayLimit = 10

var singleNoticeTmpl = template.Must(template.New("single").Parse(`
<html>
    <body>
        <h2>Sample Data Available</h2>
        <p>The data for sample <strong>{{.SampleID}}</strong> is now available for download.</p>
        {{range .Links}}<p><a href="{{.URL}}">Download {{.Filename}}</a></p>
        {{end}}<p>This link will expire on <strong>{{.ExpiresOn}}</strong> ({{.TTLDays}} days from now).</p>
        <p>If you have any questions or issues with the download, please contact the data provider.</p>
    </body>
</html>
`))

var multiNoticeTmpl = template.Must(template.New("multi").Parse(`
<html>
    <body>
        <h2>Multiple Samples Available</h2>
        <p>The following samples are now available in storage bucket <strong>{{.Container}}</strong>:</p>
        <p>{{range .Samples}}{{.}}<br>{{end}}{{if .Truncated}}... and {{.Truncated}} more<br>{{end}}</p>
        <p>You have been granted access to this bucket. To access the data, please use the
        cloud console or the provider's command-line tools.</p>
        <p>This data will be automatically deleted on <strong>{{.ExpiresOn}}</strong> ({{.TTLDays}} days from now).</p>
        <p>If you have any questions or issues with access, please contact the data provider.</p>
    </body>
</html>
`))

// SMTPNotifier sends share notices over SMTP.
type SMTPNotifier struct {
	cfg config.EmailConfig
}

// NewSMTPNotifier creates a notifier from email configuration.
func NewSMTPNotifier(cfg config.EmailConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

// IsConfigured returns true if the notifier has the minimum required fields.
func (n *SMTPNotifier) IsConfigured() bool {
	return n.cfg.SMTPServer != "" && n.cfg.SMTPPort > 0 && n.cfg.FromAddress != ""
}

// SendSingleNotice emails a download link for one sample.
func (n *SMTPNotifier) SendSingleNotice(ctx context.Context, recipient, sampleID string, links []DownloadLink, ttlDays int) bool {
	subject := fmt.Sprintf("Data available for sample %s", sampleID)

	var body bytes.Buffer
	err := singleNoticeTmpl.Execute(&body, struct {
		SampleID  string
		Links     []DownloadLink
		ExpiresOn string
		TTLDays   int
	}{
		SampleID:  sampleID,
		Links:     links,
		ExpiresOn: expiresOn(ttlDays),
		TTLDays:   ttlDays,
	})
	if err != nil {
		log.Errorf("Error rendering single-sample notice: %v", err)
		return false
	}

	if err := n.send(recipient, subject, body.String()); err != nil {
		log.Errorf("Error sending email to %s for sample %s: %v", recipient, sampleID, err)
		return false
	}
	log.Infof("Email sent successfully to %s for sample %s", recipient, sampleID)
	return true
}

// SendMultiNotice emails the list of shared samples and their container.
func (n *SMTPNotifier) SendMultiNotice(ctx context.Context, recipient string, sampleIDs []string, container string, ttlDays int) bool {
	subject := "Multiple samples available in cloud storage"

	display := sampleIDs
	truncated := 0
	if len(sampleIDs) > sampleDisplayLimit {
		display = sampleIDs[:sampleDisplayLimit]
		truncated = len(sampleIDs) - sampleDisplayLimit
	}

	var body bytes.Buffer
	err := multiNoticeTmpl.Execute(&body, struct {
		Container string
		Samples   []string
		Truncated int
		ExpiresOn string
		TTLDays   int
	}{
		Container: container,
		Samples:   display,
		Truncated: truncated,
		ExpiresOn: expiresOn(ttlDays),
		TTLDays:   ttlDays,
	})
	if err != nil {
		log.Errorf("Error rendering multi-sample notice: %v", err)
		return false
	}

	if err := n.send(recipient, subject, body.String()); err != nil {
		log.Errorf("Error sending email to %s for multiple samples: %v", recipient, err)
		return false
	}
	log.Infof("Email sent successfully to %s for %d samples", recipient, len(sampleIDs))
	return true
}

func expiresOn(ttlDays int) string {
	return time.Now().Add(time.Duration(ttlDays) * 24 * time.Hour).Format("2006-01-02 15:04:05")
}

func (n *SMTPNotifier) send(recipient, subject, htmlBody string) error {
	if !n.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}

	msg := buildMessage(n.cfg.FromAddress, recipient, subject, htmlBody)
	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPServer, n.cfg.SMTPPort)

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("SMTP dial: %w", err)
	}
	defer client.Close()

	if n.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsCfg := &tls.Config{
				ServerName: n.cfg.SMTPServer,
				MinVersion: tls.VersionTLS12,
			}
			if err := client.StartTLS(tlsCfg); err != nil {
				return fmt.Errorf("STARTTLS: %w", err)
			}
		}
	}

	if n.cfg.Username != "" && n.cfg.Password != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.SMTPServer)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := client.Mail(n.cfg.FromAddress); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("RCPT TO %s: %w", recipient, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return client.Quit()
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return b.Bytes()
}
