package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"gopkg.in/gomail.v2"

	"klik-api/config"
)

// VerificationCodeTTL is how long an emailed verification code stays valid.
const VerificationCodeTTL = 10 * time.Minute

type EmailService struct {
	config *config.Config
	sender gomail.Sender
	dialer *gomail.Dialer

	// In-memory storage for verification codes
	verificationCodes map[string]VerificationCode
	mutex             sync.RWMutex
}

type VerificationCode struct {
	Code      string    `json:"code"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		config:            cfg,
		dialer:            gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		verificationCodes: make(map[string]VerificationCode),
	}
}

// NewEmailServiceWithSender delivers through sender instead of dialing SMTP.
func NewEmailServiceWithSender(cfg *config.Config, sender gomail.Sender) *EmailService {
	return &EmailService{
		config:            cfg,
		sender:            sender,
		verificationCodes: make(map[string]VerificationCode),
	}
}

func (es *EmailService) send(m *gomail.Message) error {
	if es.sender != nil {
		return gomail.Send(es.sender, m)
	}
	return es.dialer.DialAndSend(m)
}

// Generate a random 4-digit verification code
func (es *EmailService) generateVerificationCode() string {
	const digits = "0123456789"
	code := make([]byte, 4)

	for i := range code {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		code[i] = digits[num.Int64()]
	}

	return string(code)
}

func (es *EmailService) newMessage(to, subject, text, html string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", es.config.FromName, es.config.FromEmail))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)
	return m
}

// SendVerificationEmail emails a 4-digit code, reusing a live unused code for
// the same address.
func (es *EmailService) SendVerificationEmail(email, name string) (string, error) {
	es.mutex.RLock()
	existingCode, exists := es.verificationCodes[email]
	es.mutex.RUnlock()

	var code string
	if exists && !existingCode.Used && time.Now().Before(existingCode.ExpiresAt) {
		code = existingCode.Code
		slog.Debug("reusing verification code", "email", email)
	} else {
		code = es.generateVerificationCode()

		es.mutex.Lock()
		es.verificationCodes[email] = VerificationCode{
			Code:      code,
			Email:     email,
			ExpiresAt: time.Now().Add(VerificationCodeTTL),
		}
		es.mutex.Unlock()
		slog.Debug("generated verification code", "email", email)
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { text-align: center; background: #111; color: white; padding: 20px; border-radius: 10px 10px 0 0; }
        .content { background: #f8f9fa; padding: 30px; border-radius: 0 0 10px 10px; }
        .code { font-size: 32px; font-weight: bold; letter-spacing: 8px; text-align: center; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Klik</h1></div>
        <div class="content">
            <h2>Hola %s!</h2>
            <p>Use this code to verify your email address:</p>
            <div class="code">%s</div>
            <p><small>The code expires in 10 minutes. If you did not sign up for Klik, ignore this email.</small></p>
        </div>
    </div>
</body>
</html>`, name, code)

	textBody := fmt.Sprintf(`Hola %s!

Use this code to verify your email address: %s

The code expires in 10 minutes. If you did not sign up for Klik, ignore this email.
`, name, code)

	if err := es.send(es.newMessage(email, "Klik - Verify your email", textBody, htmlBody)); err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("verification email sent", "email", email)
	return code, nil
}

// VerifyCode consumes the code stored for email.
func (es *EmailService) VerifyCode(email, inputCode string) bool {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	storedCode, exists := es.verificationCodes[email]
	switch {
	case !exists:
		slog.Debug("no verification code", "email", email)
		return false
	case storedCode.Used:
		return false
	case time.Now().After(storedCode.ExpiresAt):
		delete(es.verificationCodes, email)
		return false
	case storedCode.Code != inputCode:
		return false
	}

	storedCode.Used = true
	es.verificationCodes[email] = storedCode
	return true
}

// GetVerificationCode returns the live code for email. Only exposed in debug mode.
func (es *EmailService) GetVerificationCode(email string) string {
	es.mutex.RLock()
	defer es.mutex.RUnlock()

	if code, exists := es.verificationCodes[email]; exists && !code.Used && time.Now().Before(code.ExpiresAt) {
		return code.Code
	}
	return ""
}

// CleanupExpiredCodes drops used and expired codes and reports how many.
func (es *EmailService) CleanupExpiredCodes() int {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	removed := 0
	now := time.Now()
	for email, code := range es.verificationCodes {
		if now.After(code.ExpiresAt) || code.Used {
			delete(es.verificationCodes, email)
			removed++
		}
	}
	return removed
}

// Run cleans up verification codes every interval until ctx is cancelled.
func (es *EmailService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := es.CleanupExpiredCodes(); n > 0 {
				slog.Debug("cleaned up verification codes", "count", n)
			}
		}
	}
}

func (es *EmailService) SendWelcomeEmail(email, name string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h1>Welcome to Klik, %s!</h1>
    <p>Your email is verified. Share your first post, follow people you like and start a conversation.</p>
    <p><a href="%s/feed">Open Klik</a></p>
</body>
</html>`, name, es.config.AppURL)

	textBody := fmt.Sprintf(`Welcome to Klik, %s!

Your email is verified. Share your first post, follow people you like and start a conversation.

%s/feed
`, name, es.config.AppURL)

	if err := es.send(es.newMessage(email, "Welcome to Klik", textBody, htmlBody)); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	slog.Info("welcome email sent", "email", email)
	return nil
}

// SendPasswordResetEmail emails a link carrying the reset token.
func (es *EmailService) SendPasswordResetEmail(email, name, token string) error {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", es.config.AppURL, token)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <p>Hi %s,</p>
    <p>We received a request to reset the password of your Klik account.</p>
    <p><a href="%s">Choose a new password</a></p>
    <p><small>The link expires in one hour. If you did not request a reset, ignore this email; your password stays unchanged.</small></p>
</body>
</html>`, name, link)

	textBody := fmt.Sprintf(`Hi %s,

We received a request to reset the password of your Klik account.

Choose a new password: %s

The link expires in one hour. If you did not request a reset, ignore this email; your password stays unchanged.
`, name, link)

	if err := es.send(es.newMessage(email, "Klik - Password reset", textBody, htmlBody)); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}

	slog.Info("password reset email sent", "email", email)
	return nil
}

func (es *EmailService) SendPasswordChangedEmail(email, name string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <p>Hi %s,</p>
    <p>The password of your Klik account was changed.</p>
    <p>If this wasn't you, reset your password right away.</p>
</body>
</html>`, name)

	textBody := fmt.Sprintf(`Hi %s,

The password of your Klik account was changed.

If this wasn't you, reset your password right away.
`, name)

	if err := es.send(es.newMessage(email, "Klik - Password changed", textBody, htmlBody)); err != nil {
		return fmt.Errorf("failed to send password changed email: %w", err)
	}

	slog.Info("password changed email sent", "email", email)
	return nil
}
