// Package sms delivers verification codes out of band.
package sms

import (
	"context"

	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/core/domain"
)

// LogSender writes codes to the application log instead of a carrier
// gateway. It backs development and CI environments; production swaps in a
// real gateway client behind the same interface.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender builds a log-backed sender.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

// SendOTP records the delivery. The full phone number never reaches the
// log; only the last four digits do.
func (s *LogSender) SendOTP(ctx context.Context, phone, countryCode, code string, purpose domain.OTPPurpose) error {
	s.log.Info("otp delivery",
		zap.String("phone_suffix", suffix(phone)),
		zap.String("country_code", countryCode),
		zap.String("purpose", string(purpose)),
		zap.String("code", code),
	)
	return nil
}

func suffix(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return "****" + phone[len(phone)-4:]
}
