package service

import (
	"time"

	"barberbook/internal/config"
	"barberbook/internal/models"
	"barberbook/internal/worker"
)

// Options carries the booking policy shared by the services.
type Options struct {
	StepMinutes      int
	MaxAdvanceDays   int
	Location         *time.Location
	ReadRetry        worker.RetryPolicy
	ClientRateLimit  int
	ClientRateWindow time.Duration
	OfferAllUnmapped bool
	WhatsAppBaseURL  string
}

// OptionsFromConfig maps the booking and notify sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StepMinutes:    cfg.Booking.StepMinutes,
		MaxAdvanceDays: cfg.Booking.MaxAdvanceDays,
		Location:       cfg.Location(),
		ReadRetry: worker.RetryPolicy{
			MaxRetries:    cfg.Booking.ReadRetries,
			InitialDelay:  time.Duration(cfg.Booking.ReadRetryDelayMS) * time.Millisecond,
			MaxDelay:      time.Second,
			BackoffFactor: 2,
		},
		ClientRateLimit:  cfg.Booking.ClientRateLimit,
		ClientRateWindow: time.Duration(cfg.Booking.ClientRateWindow) * time.Second,
		OfferAllUnmapped: cfg.Booking.OfferAllWhenUnmapped(),
		WhatsAppBaseURL:  cfg.Notify.WhatsApp.BaseURL,
	}
}

func (o Options) withDefaults() Options {
	if o.StepMinutes <= 0 {
		o.StepMinutes = models.DefaultSlotStepMinutes
	}
	if o.MaxAdvanceDays <= 0 {
		o.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.ReadRetry.InitialDelay <= 0 {
		o.ReadRetry.InitialDelay = 50 * time.Millisecond
	}
	if o.ClientRateWindow <= 0 {
		o.ClientRateWindow = time.Minute
	}
	return o
}
