package shipment

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"shipmentportal/internal/apperr"
	"shipmentportal/internal/model"
	"shipmentportal/pkg/logger"
)

// MaxListLimit caps the shipment listing.
const MaxListLimit = 100

type Store interface {
	List(ctx context.Context, f model.ShipmentFilter) ([]model.Shipment, error)
	GetDetail(ctx context.Context, id int64) (*model.ShipmentDetail, error)
	Create(ctx context.Context, in model.NewShipment, now time.Time) (int64, error)
	RecordMilestone(ctx context.Context, in model.NewMilestone) (int64, error)
}

type ExceptionStore interface {
	Create(ctx context.Context, in model.NewException, now time.Time) (int64, error)
	Resolve(ctx context.Context, id int64, resolvedBy string, now time.Time) error
}

type ListQuery struct {
	BookingNumber   string
	ContainerNumber string
	Status          string
}

type CreateInput struct {
	BookingNumber   string  `json:"booking_number"`
	ContainerNumber *string `json:"container_number"`
	VesselName      *string `json:"vessel_name"`
	SteamshipLine   *string `json:"steamship_line"`
	OriginPort      *string `json:"origin_port"`
	DestinationPort *string `json:"destination_port"`
}

type MilestoneInput struct {
	Name     string  `json:"milestone_name"`
	Location *string `json:"location"`
	Notes    *string `json:"notes"`
}

type ExceptionInput struct {
	ExceptionType *string `json:"exception_type"`
	Severity      string  `json:"severity"`
	Title         string  `json:"title"`
	Description   *string `json:"description"`
}

type Service struct {
	shipments  Store
	exceptions ExceptionStore
	now        func() time.Time
	logger     *zap.Logger
}

func NewService(shipments Store, exceptions ExceptionStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		shipments:  shipments,
		exceptions: exceptions,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]model.Shipment, error) {
	f := model.ShipmentFilter{
		BookingNumber:   strings.TrimSpace(q.BookingNumber),
		ContainerNumber: strings.TrimSpace(q.ContainerNumber),
		Limit:           MaxListLimit,
	}
	if q.Status != "" {
		st, err := model.ParseShipmentStatus(q.Status)
		if err != nil {
			return nil, apperr.Invalid("status", "is not a valid shipment status")
		}
		f.Status = st
	}

	shipments, err := s.shipments.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if shipments == nil {
		shipments = []model.Shipment{}
	}
	return shipments, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.ShipmentDetail, error) {
	return s.shipments.GetDetail(ctx, id)
}

// Create books a new shipment. The initial BOOKING_CONFIRMED milestone is
// written with it and picked up by the notification worker.
func (s *Service) Create(ctx context.Context, in CreateInput, actor string) (int64, error) {
	booking := strings.TrimSpace(in.BookingNumber)
	if booking == "" {
		return 0, apperr.Invalid("", "Missing required fields")
	}

	id, err := s.shipments.Create(ctx, model.NewShipment{
		BookingNumber:   booking,
		ContainerNumber: in.ContainerNumber,
		VesselName:      in.VesselName,
		SteamshipLine:   in.SteamshipLine,
		OriginPort:      in.OriginPort,
		DestinationPort: in.DestinationPort,
		CreatedBy:       actor,
	}, s.now().UTC())
	if err != nil {
		return 0, err
	}

	logger.WithTrace(ctx, s.logger).Info("shipment created",
		zap.Int64("shipment_id", id),
		zap.String("booking_number", booking),
		zap.String("created_by", actor),
	)
	return id, nil
}

// RecordMilestone appends a completed milestone; the latest recorded one
// becomes the shipment's current milestone.
func (s *Service) RecordMilestone(ctx context.Context, shipmentID int64, in MilestoneInput, actor string) (int64, error) {
	name := model.NormalizeMilestoneName(in.Name)
	if name == "" {
		return 0, apperr.Invalid("", "milestone_name required")
	}

	id, err := s.shipments.RecordMilestone(ctx, model.NewMilestone{
		ShipmentID: shipmentID,
		Name:       name,
		Location:   in.Location,
		Notes:      in.Notes,
		CreatedBy:  actor,
		ActualDate: s.now().UTC(),
	})
	if err != nil {
		return 0, err
	}

	logger.WithTrace(ctx, s.logger).Info("milestone recorded",
		zap.Int64("shipment_id", shipmentID),
		zap.Int64("milestone_id", id),
		zap.String("milestone", name),
	)
	return id, nil
}

func (s *Service) RaiseException(ctx context.Context, shipmentID int64, in ExceptionInput, actor string) (int64, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return 0, apperr.Invalid("", "title required")
	}
	sev, err := model.ParseSeverity(in.Severity)
	if err != nil {
		return 0, apperr.Invalid("severity", "must be one of LOW, MEDIUM, HIGH, CRITICAL")
	}

	id, err := s.exceptions.Create(ctx, model.NewException{
		ShipmentID:    shipmentID,
		ExceptionType: in.ExceptionType,
		Severity:      sev,
		Title:         title,
		Description:   in.Description,
		ReportedBy:    actor,
	}, s.now().UTC())
	if err != nil {
		return 0, err
	}

	logger.WithTrace(ctx, s.logger).Info("exception opened",
		zap.Int64("shipment_id", shipmentID),
		zap.Int64("exception_id", id),
		zap.String("severity", string(sev)),
	)
	return id, nil
}

func (s *Service) ResolveException(ctx context.Context, id int64, actor string) error {
	if err := s.exceptions.Resolve(ctx, id, actor, s.now().UTC()); err != nil {
		return err
	}
	logger.WithTrace(ctx, s.logger).Info("exception resolved",
		zap.Int64("exception_id", id),
		zap.String("resolved_by", actor),
	)
	return nil
}
