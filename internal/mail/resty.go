package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// apiRequest is the transactional-mail provider's message envelope.
type apiRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// apiResponse is the provider's status envelope.
type apiResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// HTTPSender sends OTP mail through an HTTP mail-API provider.
type HTTPSender struct {
	httpClient *resty.Client
	from       string
	logger     *zap.Logger
}

// NewHTTPSender constructs a provider client with retries and timeouts.
func NewHTTPSender(baseURL, apiKey, from string, logger *zap.Logger) *HTTPSender {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+apiKey)

	return &HTTPSender{httpClient: client, from: from, logger: logger}
}

// SendOTP posts a verification message to the provider.
func (s *HTTPSender) SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error {
	body := apiRequest{
		From:    s.from,
		To:      to,
		Subject: "Your complaint verification code",
		Text: fmt.Sprintf(
			"Your one-time verification code is %s. It expires at %s. If you did not submit a complaint, ignore this message.",
			code, expiresAt.Format(time.Kitchen)),
	}

	var out apiResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/messages")
	if err != nil {
		s.logger.Error("mail provider call failed", zap.Error(err))
		return fmt.Errorf("send otp mail: %w", err)
	}
	if resp.IsError() || out.Status != 0 {
		s.logger.Error("mail provider rejected message",
			zap.Int("http_status", resp.StatusCode()),
			zap.Int("status", out.Status),
			zap.String("message", out.Message),
		)
		return fmt.Errorf("send otp mail: provider status %d: %s", out.Status, out.Message)
	}
	s.logger.Info("otp mail sent", zap.String("to", to))
	return nil
}

// LogSender writes the code to the log instead of sending mail. Development only.
type LogSender struct{ Logger *zap.Logger }

// SendOTP logs the code.
func (s *LogSender) SendOTP(_ context.Context, to, code string, expiresAt time.Time) error {
	s.Logger.Info("otp (dev mail sender)",
		zap.String("to", to),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}
