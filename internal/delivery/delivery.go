package delivery

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// Sender sends composed messages. *gomail.Dialer satisfies it; tests inject
// a fake.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Request carries everything needed to deliver a purchased book. The caller
// resolves buyer, book and purchase up front so this package never touches
// the database.
type Request struct {
	PurchaseID   string
	BuyerName    string
	BuyerEmail   string
	BookTitle    string
	BookAuthor   string
	Amount       float64
	PurchaseDate time.Time
	ArtifactPath string // relative to the upload dir; empty when the seller never uploaded one
}

// Outcome reports what a delivery attempt did. Persisting it is the purchase
// orchestrator's job.
type Outcome struct {
	Delivered bool
	Attached  bool
}

// Service composes and sends purchase emails through an outbound mail
// transport.
type Service struct {
	sender    Sender
	from      string
	uploadDir string
}

// NewService creates a delivery service using the given mail sender
func NewService(sender Sender, from, uploadDir string) *Service {
	return &Service{
		sender:    sender,
		from:      from,
		uploadDir: uploadDir,
	}
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Send emails the transaction summary to the buyer, attaching the book PDF
// when the artifact exists on disk. A missing artifact does not block
// delivery; the email carries a notice instead of an attachment.
func (s *Service) Send(req Request) (Outcome, error) {
	logger := log.With().
		Str("service", "delivery").
		Str("purchase_id", req.PurchaseID).
		Str("to", req.BuyerEmail).
		Logger()

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", req.BuyerEmail)
	m.SetHeader("Subject", fmt.Sprintf("Your Book Purchase: %s", req.BookTitle))

	attached := false
	if req.ArtifactPath != "" {
		fullPath := filepath.Join(s.uploadDir, req.ArtifactPath)
		if _, err := os.Stat(fullPath); err == nil {
			name := unsafeFilename.ReplaceAllString(req.BookTitle, "_") + ".pdf"
			m.Attach(fullPath, gomail.Rename(name))
			attached = true
		} else {
			logger.Warn().Str("artifact", fullPath).Msg("artifact missing on disk, sending without attachment")
		}
	}

	m.SetBody("text/html", s.composeBody(req, attached))

	if err := s.sender.DialAndSend(m); err != nil {
		logger.Error().Err(err).Msg("failed to send purchase email")
		return Outcome{}, fmt.Errorf("failed to send purchase email: %w", err)
	}

	logger.Info().Bool("attached", attached).Msg("purchase email sent")
	return Outcome{Delivered: true, Attached: attached}, nil
}

func (s *Service) composeBody(req Request, attached bool) string {
	artifactNote := `<p style="color: #d9534f;">Note: The seller has not uploaded a PDF file for this book yet. Please contact the seller for assistance.</p>`
	if attached {
		artifactNote = `<p>Your book PDF is attached to this email. You can also access it from your profile at any time.</p>`
	}

	return fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Thank you for your purchase!</h2>
  <p>Hi %s,</p>
  <p>You have successfully purchased <strong>%s</strong> by %s.</p>

  <div style="background-color: #f5f5f5; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <h3 style="margin-top: 0;">Purchase Details:</h3>
    <p><strong>Book:</strong> %s</p>
    <p><strong>Author:</strong> %s</p>
    <p><strong>Amount Paid:</strong> ₹%.2f</p>
    <p><strong>Purchase Date:</strong> %s</p>
  </div>

  %s

  <p>If you have any questions, feel free to contact us.</p>

  <p style="margin-top: 30px;">
    Best regards,<br>
    <strong>BookNest Team</strong>
  </p>
</div>`,
		req.BuyerName,
		req.BookTitle,
		req.BookAuthor,
		req.BookTitle,
		req.BookAuthor,
		req.Amount,
		req.PurchaseDate.Format("2 Jan 2006"),
		artifactNote,
	)
}
