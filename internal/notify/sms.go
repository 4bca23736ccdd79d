package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/config"
	"github.com/adirsaban8-oss/ADIRS/internal/phone"

	"github.com/rs/zerolog"
)

const DefaultActiveTrailURL = "http://webapi.mymarketing.co.il/api/smscampaign/OperationalMessage"

// ActiveTrail caps the sender name at 11 characters.
const maxSenderName = 11

type activeTrailRequest struct {
	Details struct {
		Name           string `json:"name"`
		FromName       string `json:"from_name"`
		Content        string `json:"content"`
		CanUnsubscribe bool   `json:"can_unsubscribe"`
	} `json:"details"`
	Scheduling struct {
		SendNow bool `json:"send_now"`
	} `json:"scheduling"`
	Mobiles []activeTrailMobile `json:"mobiles"`
}

type activeTrailMobile struct {
	PhoneNumber string `json:"phone_number"`
}

// ActiveTrailSender sends operational SMS through ActiveTrail.
type ActiveTrailSender struct {
	enabled  bool
	apiKey   string
	sender   string
	endpoint string
	client   *http.Client
	logger   *zerolog.Logger
}

func NewActiveTrailSender(cfg config.SMSConfig, logger *zerolog.Logger) *ActiveTrailSender {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultActiveTrailURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sender := cfg.SenderName
	if len(sender) > maxSenderName {
		sender = sender[:maxSenderName]
	}
	return &ActiveTrailSender{
		enabled:  cfg.Enabled && cfg.APIKey != "",
		apiKey:   cfg.APIKey,
		sender:   sender,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Enabled reports whether messages are really sent.
func (s *ActiveTrailSender) Enabled() bool { return s.enabled }

// SendSMS sends text to an Israeli number. When SMS is disabled it logs the
// message and returns ErrDisabled.
func (s *ActiveTrailSender) SendSMS(ctx context.Context, to, text string) error {
	canonical, err := phone.Normalize(to)
	if err != nil {
		return fmt.Errorf("notify: sms recipient: %w", err)
	}
	if !s.enabled {
		s.logger.Info().Str("phone", phone.Mask(canonical)).Msg("sms disabled, not sent")
		return ErrDisabled
	}

	var body activeTrailRequest
	body.Details.Name = "LISHAI SMS"
	body.Details.FromName = s.sender
	body.Details.Content = text
	body.Scheduling.SendNow = true
	body.Mobiles = []activeTrailMobile{{PhoneNumber: phone.Digits(canonical)}}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("notify: encode sms: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build sms request: %w", err)
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: activetrail request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		s.logger.Info().Str("phone", phone.Mask(canonical)).Int("status", resp.StatusCode).Msg("sms sent")
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	s.logger.Error().Int("status", resp.StatusCode).Str("body", string(snippet)).Msg("activetrail error")
	return fmt.Errorf("notify: activetrail returned status %d", resp.StatusCode)
}
