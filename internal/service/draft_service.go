package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DraftService keeps the client's step-by-step booking between requests.
type DraftService struct {
	drafts  domain.DraftRepository
	booking *BookingService
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewDraftService(drafts domain.DraftRepository, booking *BookingService, logger *zerolog.Logger) *DraftService {
	return &DraftService{
		drafts:  drafts,
		booking: booking,
		now:     time.Now,
		logger:  logger,
	}
}

func (s *DraftService) CreateDraft(ctx context.Context, businessID string) (*models.BookingDraft, error) {
	return s.StartDraft(ctx, uuid.NewString(), businessID)
}

// StartDraft stores a fresh draft under id, replacing any previous one.
// Chat front-ends key drafts by chat so a restart keeps the conversation.
func (s *DraftService) StartDraft(ctx context.Context, id, businessID string) (*models.BookingDraft, error) {
	if strings.TrimSpace(businessID) == "" {
		return nil, invalid("business_id", "is required")
	}
	d := &models.BookingDraft{
		ID:         id,
		BusinessID: businessID,
		UpdatedAt:  s.now(),
	}
	d.Step = d.NextStep()
	if err := s.drafts.SetDraft(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DraftService) GetDraft(ctx context.Context, id string) (*models.BookingDraft, error) {
	return s.drafts.GetDraft(ctx, id)
}

// UpdateDraft merges the non-empty fields of patch. Picking another
// service, professional or date drops the chosen time.
func (s *DraftService) UpdateDraft(ctx context.Context, id string, patch models.BookingDraft) (*models.BookingDraft, error) {
	d, err := s.drafts.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := func(cur *string, next string) bool {
		next = strings.TrimSpace(next)
		if next == "" || next == *cur {
			return false
		}
		*cur = next
		return true
	}

	resetTime := false
	resetTime = changed(&d.ServiceID, patch.ServiceID) || resetTime
	resetTime = changed(&d.ProfessionalID, patch.ProfessionalID) || resetTime
	resetTime = changed(&d.Date, patch.Date) || resetTime
	if resetTime {
		d.StartTime = ""
	}
	changed(&d.StartTime, patch.StartTime)
	changed(&d.ClientName, patch.ClientName)
	changed(&d.ClientPhone, patch.ClientPhone)
	changed(&d.Notes, patch.Notes)

	d.Step = d.NextStep()
	d.UpdatedAt = s.now()
	if err := s.drafts.SetDraft(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SubmitDraft books the draft. On success the draft is removed; when the
// slot was taken meanwhile the time is cleared so the client picks again.
func (s *DraftService) SubmitDraft(ctx context.Context, id string) (*models.Appointment, error) {
	d, err := s.drafts.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if step := d.NextStep(); step != models.StepConfirmation {
		return nil, invalid("step", "draft is incomplete, missing "+step)
	}

	appt, err := s.booking.SubmitBooking(ctx, BookingRequest{
		BusinessID:     d.BusinessID,
		ProfessionalID: d.ProfessionalID,
		ServiceID:      d.ServiceID,
		Date:           d.Date,
		StartTime:      d.StartTime,
		ClientName:     d.ClientName,
		ClientPhone:    d.ClientPhone,
		Notes:          d.Notes,
	})
	if errors.Is(err, domain.ErrSlotUnavailable) {
		d.StartTime = ""
		d.Step = d.NextStep()
		d.UpdatedAt = s.now()
		if serr := s.drafts.SetDraft(ctx, d); serr != nil {
			s.logger.Warn().Err(serr).Str("draft_id", id).Msg("failed to reset draft time")
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if err := s.drafts.ClearDraft(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("draft_id", id).Msg("failed to clear draft")
	}
	return appt, nil
}

func (s *DraftService) DeleteDraft(ctx context.Context, id string) error {
	return s.drafts.ClearDraft(ctx, id)
}
