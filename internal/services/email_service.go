package services

import (
	"fmt"
	"html"
	"log"

	"github.com/resend/resend-go/v2"
)

// Mailer sends one HTML e-mail.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

type EmailService struct {
	Client *resend.Client
	From   string
}

func NewEmailService(apiKey, fromEmail string) *EmailService {
	log.Printf("📧 Email Service Initialized (Resend)")
	log.Printf("   - From Email: %s", fromEmail)
	log.Printf("   - API Key: %s", maskAPIKey(apiKey))

	if apiKey == "" {
		log.Printf("⚠️  WARNING: RESEND_API_KEY is empty!")
	}
	if fromEmail == "" {
		log.Printf("⚠️  WARNING: FROM_EMAIL is empty!")
		fromEmail = "onboarding@resend.dev" // Resend's default test email
	}

	return &EmailService{
		Client: resend.NewClient(apiKey),
		From:   fromEmail,
	}
}

// Helper function to mask API key for logging
func maskAPIKey(key string) string {
	if len(key) == 0 {
		return "❌ EMPTY"
	}
	if len(key) < 8 {
		return "***"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Send sends an e-mail through the Resend API
func (es *EmailService) Send(to, subject, htmlBody string) error {
	params := &resend.SendEmailRequest{
		From:    es.From,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}

	sent, err := es.Client.Emails.Send(params)
	if err != nil {
		log.Printf("❌ Resend API Error: %v", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("✅ Email sent successfully to: %s (ID: %s)", to, sent.Id)
	return nil
}

// emailTemplate escapes every argument; titles and resolutions are user input.
func emailTemplate(heading, intro, highlight, footer string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .amount-box { background-color: #f4f4f4; border: 2px dashed #007bff; padding: 20px; text-align: center; margin: 20px 0; border-radius: 5px; }
        .amount { font-size: 28px; font-weight: bold; color: #007bff; }
        .footer { margin-top: 30px; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <h2>%s</h2>
        <p>%s</p>
        <div class="amount-box">
            <div class="amount">%s</div>
        </div>
        <p>%s</p>
        <div class="footer">
            <p>This is an automated message, please do not reply.</p>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(heading), html.EscapeString(intro), html.EscapeString(highlight), html.EscapeString(footer))
}
