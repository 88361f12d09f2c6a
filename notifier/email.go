// Package notifier emails the operator when a dataset upload is accepted.
package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	gomail "gopkg.in/mail.v2"

	"movie-mate/config"
	"movie-mate/logging"
	"movie-mate/resolver"
)

const maxListedGenres = 20

var emailTemplate = template.Must(template.New("email").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Movie Mate - Dataset Uploaded</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; }
        h1 { color: #e50914; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
        th { background-color: #f4f4f4; text-align: left; padding: 10px; }
        td { padding: 10px; border-bottom: 1px solid #ddd; }
        .count { font-weight: bold; color: #e50914; }
        .footer { font-size: 12px; color: #666; margin-top: 50px; text-align: center; }
    </style>
</head>
<body>
    <h1>Movie Mate - Dataset Uploaded</h1>
    <p>A new movie dataset was accepted on {{.Date}}.</p>

    <table>
        <tr><th>File</th><td>{{.Filename}}</td></tr>
        <tr><th>Size</th><td>{{.Bytes}} bytes</td></tr>
        <tr><th>Movies</th><td class="count">{{.Movies}}</td></tr>
    </table>

    {{if .Genres}}
    <h2>Genres ({{.GenreCount}})</h2>
    <ul>
        {{range .Genres}}<li>{{.}}</li>
        {{end}}{{if .MoreGenres}}<li>...</li>{{end}}
    </ul>
    {{end}}

    <div class="footer">
        <p>This is an automated email from Movie Mate. Please do not reply.</p>
    </div>
</body>
</html>
`))

// Dialer delivers messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier sends dataset upload notifications
type EmailNotifier struct {
	senderEmail    string
	recipientEmail string
	dialer         Dialer
	now            func() time.Time
}

var _ resolver.UploadNotifier = (*EmailNotifier)(nil)

// Enabled reports whether cfg carries enough to send mail
func Enabled(cfg config.Email) bool {
	return cfg.SMTPHost != "" && cfg.RecipientEmail != ""
}

// NewEmailNotifier creates a notifier that authenticates as "api" with the
// sender password, the scheme Mailtrap-style relays expect.
func NewEmailNotifier(cfg config.Email) (*EmailNotifier, error) {
	if !Enabled(cfg) {
		return nil, errors.New("email notifications need an SMTP host and a recipient")
	}

	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	logging.Info().
		Str("host", cfg.SMTPHost).
		Int("port", port).
		Str("recipient", cfg.RecipientEmail).
		Msg("Email notifications enabled")

	return NewEmailNotifierWithDialer(cfg, gomail.NewDialer(cfg.SMTPHost, port, "api", cfg.SenderPassword)), nil
}

// NewEmailNotifierWithDialer is NewEmailNotifier with a caller supplied transport
func NewEmailNotifierWithDialer(cfg config.Email, dialer Dialer) *EmailNotifier {
	return &EmailNotifier{
		senderEmail:    cfg.SenderEmail,
		recipientEmail: cfg.RecipientEmail,
		dialer:         dialer,
		now:            time.Now,
	}
}

// DatasetUploaded emails a summary of the accepted upload
func (n *EmailNotifier) DatasetUploaded(ctx context.Context, upload resolver.DatasetUpload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := n.Message(upload)
	if err != nil {
		return err
	}
	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logging.Info().Str("recipient", n.recipientEmail).Str("file", upload.Filename).Msg("Dataset upload notification sent")
	return nil
}

// Message builds the notification without sending it
func (n *EmailNotifier) Message(upload resolver.DatasetUpload) (*gomail.Message, error) {
	genres := upload.Genres
	more := false
	if len(genres) > maxListedGenres {
		genres = genres[:maxListedGenres]
		more = true
	}

	data := struct {
		Date       string
		Filename   string
		Bytes      int
		Movies     int
		Genres     []string
		GenreCount int
		MoreGenres bool
	}{
		Date:       n.now().Format("January 2, 2006 at 3:04 PM"),
		Filename:   upload.Filename,
		Bytes:      upload.Bytes,
		Movies:     upload.Movies,
		Genres:     genres,
		GenreCount: len(upload.Genres),
		MoreGenres: more,
	}

	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("failed to render email template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.senderEmail)
	m.SetHeader("To", n.recipientEmail)
	m.SetHeader("Subject", fmt.Sprintf("Movie Mate: dataset %s uploaded (%d movies)", upload.Filename, upload.Movies))

	plainText := fmt.Sprintf(
		"Movie Mate Dataset Upload\n\n"+
			"File %s (%d bytes) was accepted on %s.\n"+
			"Movies: %d, genres: %d\n\n"+
			"This is an automated email from Movie Mate. Please do not reply.",
		data.Filename, data.Bytes, data.Date, data.Movies, data.GenreCount)

	m.SetBody("text/plain", plainText)
	m.AddAlternative("text/html", body.String())
	return m, nil
}
