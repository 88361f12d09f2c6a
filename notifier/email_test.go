package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/mail.v2"

	"movie-mate/config"
	"movie-mate/resolver"
)

type recordingDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *recordingDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

var testEmail = config.Email{
	SMTPHost:       "smtp.example.com",
	SMTPPort:       2525,
	SenderEmail:    "noreply@example.com",
	SenderPassword: "secret",
	RecipientEmail: "ops@example.com",
}

func render(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestEnabled(t *testing.T) {
	assert.True(t, Enabled(testEmail))
	assert.False(t, Enabled(config.Email{SMTPHost: "smtp.example.com"}))
	assert.False(t, Enabled(config.Email{RecipientEmail: "ops@example.com"}))

	_, err := NewEmailNotifier(config.Email{})
	assert.Error(t, err)
}

func TestDatasetUploadedSendsSummary(t *testing.T) {
	dialer := &recordingDialer{}
	n := NewEmailNotifierWithDialer(testEmail, dialer)
	n.now = func() time.Time { return time.Date(2024, 5, 1, 15, 4, 0, 0, time.UTC) }

	err := n.DatasetUploaded(context.Background(), resolver.DatasetUpload{
		Filename: "movies.csv",
		Bytes:    2048,
		Movies:   42,
		Genres:   []string{"Drama", "Comedy"},
	})
	require.NoError(t, err)
	require.Len(t, dialer.sent, 1)

	m := dialer.sent[0]
	assert.Equal(t, []string{"ops@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"noreply@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"Movie Mate: dataset movies.csv uploaded (42 movies)"}, m.GetHeader("Subject"))

	raw := render(t, m)
	assert.Contains(t, raw, "May 1, 2024 at 3:04 PM")
	assert.Contains(t, raw, "<li>Drama</li>")
	assert.Contains(t, raw, "<li>Comedy</li>")
}

func TestGenreListIsTruncated(t *testing.T) {
	genres := make([]string, maxListedGenres+5)
	for i := range genres {
		genres[i] = fmt.Sprintf("G%02d", i)
	}

	n := NewEmailNotifierWithDialer(testEmail, &recordingDialer{})
	m, err := n.Message(resolver.DatasetUpload{Filename: "big.csv", Genres: genres})
	require.NoError(t, err)

	raw := render(t, m)
	assert.Contains(t, raw, "G19")
	assert.NotContains(t, raw, "G24")
}

func TestDatasetUploadedReportsSendFailure(t *testing.T) {
	n := NewEmailNotifierWithDialer(testEmail, &recordingDialer{err: errors.New("connection refused")})
	err := n.DatasetUploaded(context.Background(), resolver.DatasetUpload{Filename: "movies.csv"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestDatasetUploadedHonoursCancelledContext(t *testing.T) {
	dialer := &recordingDialer{}
	n := NewEmailNotifierWithDialer(testEmail, dialer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.DatasetUploaded(ctx, resolver.DatasetUpload{}), context.Canceled)
	assert.Empty(t, dialer.sent)
}
