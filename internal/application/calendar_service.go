package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/calendar"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// AvailabilityDTO is one explicit calendar record.
type AvailabilityDTO struct {
	Date        string `json:"date"`
	ServiceType string `json:"service_type"`
	Available   bool   `json:"available"`
	MaxSlots    int    `json:"max_slots"`
	Notes       string `json:"notes,omitempty"`
}

// UpsertAvailabilityRequest sets the calendar state of one day.
type UpsertAvailabilityRequest struct {
	Date        string `json:"date" binding:"required"`
	ServiceType string `json:"service_type" binding:"required"`
	Available   *bool  `json:"available" binding:"required"`
	MaxSlots    int    `json:"max_slots"`
	Notes       string `json:"notes"`
}

// CheckAvailabilityRequest asks about either a date span or discrete dates.
type CheckAvailabilityRequest struct {
	ServiceType string   `json:"service_type" binding:"required"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Dates       []string `json:"dates"`
}

// CalendarService handles calendar administration and availability checks.
type CalendarService struct {
	repo   calendar.AvailabilityRepository
	logger *zap.Logger
}

// NewCalendarService creates a new CalendarService.
func NewCalendarService(repo calendar.AvailabilityRepository, logger *zap.Logger) *CalendarService {
	return &CalendarService{repo: repo, logger: logger}
}

// GetAvailability lists explicit records between from and to inclusive.
func (s *CalendarService) GetAvailability(ctx context.Context, serviceType string, from, to string) ([]AvailabilityDTO, error) {
	st, err := catalog.ParseServiceType(serviceType)
	if err != nil {
		return nil, err
	}
	start, err := calendar.ParseDateKey(from)
	if err != nil {
		return nil, err
	}
	end, err := calendar.ParseDateKey(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, domain.NewValidationError("to must not be before from")
	}
	records, err := s.repo.FindRange(ctx, st, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]AvailabilityDTO, len(records))
	for i, r := range records {
		out[i] = toAvailabilityDTO(r)
	}
	return out, nil
}

// UpsertAvailability creates or replaces the record for one day.
func (s *CalendarService) UpsertAvailability(ctx context.Context, req UpsertAvailabilityRequest) (*AvailabilityDTO, error) {
	st, err := catalog.ParseServiceType(req.ServiceType)
	if err != nil {
		return nil, err
	}
	date, err := calendar.ParseDateKey(req.Date)
	if err != nil {
		return nil, err
	}
	if req.Available == nil {
		return nil, domain.NewValidationError("available is required")
	}

	rec, err := s.repo.FindByDate(ctx, st, date)
	switch {
	case err == nil:
		rec.Update(*req.Available, req.MaxSlots, req.Notes)
	case errors.Is(err, domain.ErrNotFound):
		rec, err = calendar.NewAvailability(date, st, *req.Available, req.MaxSlots, req.Notes)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("availability updated",
		zap.String("date", rec.Key()),
		zap.String("service_type", string(st)),
		zap.Bool("available", rec.Available()),
	)
	dto := toAvailabilityDTO(rec)
	return &dto, nil
}

// CheckAvailability reports blocked and unspecified days for a request.
func (s *CalendarService) CheckAvailability(ctx context.Context, req CheckAvailabilityRequest) (*calendar.Report, error) {
	st, err := catalog.ParseServiceType(req.ServiceType)
	if err != nil {
		return nil, err
	}

	var days []time.Time
	if len(req.Dates) > 0 {
		for _, d := range req.Dates {
			t, err := calendar.ParseDateKey(d)
			if err != nil {
				return nil, err
			}
			days = append(days, t)
		}
	} else {
		start, err := calendar.ParseDateKey(req.StartDate)
		if err != nil {
			return nil, err
		}
		end, err := calendar.ParseDateKey(req.EndDate)
		if err != nil {
			return nil, err
		}
		if days, err = calendar.ExpandRange(start, end); err != nil {
			return nil, err
		}
	}

	report, err := s.check(ctx, st, days)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// check runs the availability rule over days using one range query.
func (s *CalendarService) check(ctx context.Context, st catalog.ServiceType, days []time.Time) (calendar.Report, error) {
	if len(days) == 0 {
		return calendar.Report{}, domain.NewValidationError("at least one date is required")
	}
	from, to := calendar.Span(days)
	records, err := s.repo.FindRange(ctx, st, from, to)
	if err != nil {
		return calendar.Report{}, err
	}
	return calendar.Check(days, calendar.NewLookup(records)), nil
}

func toAvailabilityDTO(a *calendar.Availability) AvailabilityDTO {
	return AvailabilityDTO{
		Date:        a.Key(),
		ServiceType: string(a.ServiceType()),
		Available:   a.Available(),
		MaxSlots:    a.MaxSlots(),
		Notes:       a.Notes(),
	}
}
