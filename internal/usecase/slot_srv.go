package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/data/repository"
	"mindcare-booking/internal/directory"
	"mindcare-booking/internal/dto/request"
	"mindcare-booking/internal/dto/response"
	"mindcare-booking/pkg/apperror"
	"mindcare-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSlotWindow = 30 * 24 * time.Hour

type SlotService interface {
	CreateSlot(ctx context.Context, actor entity.Actor, professionalID string, req *request.CreateSlotRequest) (*response.SlotResponse, error)
	CreateBulkSlots(ctx context.Context, actor entity.Actor, professionalID string, req *request.CreateBulkSlotsRequest) ([]response.SlotResponse, error)
	// ListAvailableSlots returns FREE slots starting in [from, to). from is
	// clamped to now.
	ListAvailableSlots(ctx context.Context, professionalID string, req *request.ListSlotsRequest) ([]response.SlotResponse, error)
	GetSlot(ctx context.Context, slotID string) (*response.SlotResponse, error)

	// ReserveSlot is the FREE -> HELD compare-and-set.
	ReserveSlot(ctx context.Context, slotID, professionalID, userID uuid.UUID) (*entity.Slot, error)
	ConfirmSlot(ctx context.Context, slotID uuid.UUID) (*entity.Slot, error)
	ReleaseSlot(ctx context.Context, slotID uuid.UUID) (*entity.Slot, error)
}

type slotService struct {
	repo *repository.Repository
	dir  directory.Directory
	cfg  utils.BookingConfig
	now  func() time.Time
	log  *zap.Logger
}

func NewSlotService(repo *repository.Repository, dir directory.Directory, cfg utils.BookingConfig, now func() time.Time, log *zap.Logger) SlotService {
	if cfg.BulkLimit <= 0 {
		cfg.BulkLimit = 500
	}
	return &slotService{
		repo: repo,
		dir:  dir,
		cfg:  cfg,
		now:  now,
		log:  log.With(zap.String("service", "slot")),
	}
}

func (s *slotService) CreateSlot(ctx context.Context, actor entity.Actor, professionalID string, req *request.CreateSlotRequest) (*response.SlotResponse, error) {
	const op = "create slot"
	if err := validate(op, req); err != nil {
		return nil, err
	}

	profID, err := s.authorizeProfessional(ctx, op, actor, professionalID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !req.StartAt.After(now) {
		return nil, apperror.Validation(op, "start_at must be in the future")
	}

	slot := entity.NewSlot(profID, req.StartAt, req.DurationMinutes, req.Timezone, now)
	if err := s.repo.Slot.Create(ctx, slot); err != nil {
		return nil, err
	}

	s.log.Info("Slot created",
		zap.String("slot_id", slot.ID.String()),
		zap.String("professional_id", profID.String()),
		zap.Time("start_at", slot.StartAt),
	)

	resp := response.SlotToResponse(slot)
	return &resp, nil
}

func (s *slotService) CreateBulkSlots(ctx context.Context, actor entity.Actor, professionalID string, req *request.CreateBulkSlotsRequest) ([]response.SlotResponse, error) {
	const op = "create bulk slots"
	if err := validate(op, req); err != nil {
		return nil, err
	}

	profID, err := s.authorizeProfessional(ctx, op, actor, professionalID)
	if err != nil {
		return nil, err
	}

	starts, err := expandBulk(req, s.cfg.BulkLimit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	slots := make([]*entity.Slot, 0, len(starts))
	for _, start := range starts {
		if !start.After(now) {
			return nil, apperror.Validation(op, "slot at %s is in the past", start.Format(time.RFC3339))
		}
		slots = append(slots, entity.NewSlot(profID, start, req.DurationMinutes, req.Timezone, now))
	}

	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Slot.CreateBatch(ctx, slots)
	})
	if err != nil {
		s.log.Warn("Bulk slot creation rolled back",
			zap.String("professional_id", profID.String()),
			zap.Int("count", len(slots)),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("Bulk slots created",
		zap.String("professional_id", profID.String()),
		zap.Int("count", len(slots)),
	)

	return response.SlotsToResponse(slots), nil
}

// expandBulk turns the date range and wall clock times into UTC instants,
// ordered by date then time.
func expandBulk(req *request.CreateBulkSlotsRequest, limit int) ([]time.Time, error) {
	const op = "create bulk slots"

	loc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		return nil, apperror.Validation(op, "unknown timezone %q", req.Timezone)
	}
	first, err := time.ParseInLocation(time.DateOnly, req.StartDate, loc)
	if err != nil {
		return nil, apperror.Validation(op, "invalid start_date %q", req.StartDate)
	}
	last, err := time.ParseInLocation(time.DateOnly, req.EndDate, loc)
	if err != nil {
		return nil, apperror.Validation(op, "invalid end_date %q", req.EndDate)
	}
	if last.Before(first) {
		return nil, apperror.Validation(op, "end_date must not be before start_date")
	}

	clock := make([]time.Duration, 0, len(req.TimeSlots))
	for _, raw := range req.TimeSlots {
		t, err := time.Parse("15:04", raw)
		if err != nil {
			return nil, apperror.Validation(op, "invalid time slot %q", raw)
		}
		clock = append(clock, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	sort.Slice(clock, func(i, j int) bool { return clock[i] < clock[j] })

	duration := time.Duration(req.DurationMinutes) * time.Minute
	for i := 1; i < len(clock); i++ {
		if clock[i]-clock[i-1] < duration {
			return nil, apperror.Validation(op, "time slots overlap for a %d minute duration", req.DurationMinutes)
		}
	}

	// count calendar days in UTC so a DST shift does not lose one
	firstDay, _ := time.Parse(time.DateOnly, req.StartDate)
	lastDay, _ := time.Parse(time.DateOnly, req.EndDate)
	days := int(lastDay.Sub(firstDay)/(24*time.Hour)) + 1
	if total := days * len(clock); total > limit {
		return nil, apperror.Validation(op, "request expands to %d slots, the limit is %d", total, limit)
	}

	starts := make([]time.Time, 0, days*len(clock))
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		for _, offset := range clock {
			local := time.Date(d.Year(), d.Month(), d.Day(), int(offset/time.Hour), int(offset%time.Hour/time.Minute), 0, 0, loc)
			starts = append(starts, local.UTC())
		}
	}
	return starts, nil
}

func (s *slotService) ListAvailableSlots(ctx context.Context, professionalID string, req *request.ListSlotsRequest) ([]response.SlotResponse, error) {
	const op = "list available slots"

	profID, err := parseID(op, "professional id", professionalID)
	if err != nil {
		return nil, err
	}

	from, err := utils.ParseTime(req.From)
	if err != nil {
		return nil, apperror.Validation(op, "invalid from %q", req.From)
	}
	to, err := utils.ParseTime(req.To)
	if err != nil {
		return nil, apperror.Validation(op, "invalid to %q", req.To)
	}

	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return nil, apperror.Validation(op, "to must be after from")
	}

	// Slots that already started cannot be booked, so the past part of the
	// range is dropped.
	now := s.now()
	if from.IsZero() || from.Before(now) {
		from = now
	}
	if to.IsZero() {
		to = from.Add(defaultSlotWindow)
	}
	if !to.After(from) {
		return []response.SlotResponse{}, nil
	}

	slots, err := s.repo.Slot.ListAvailable(ctx, profID, from, to)
	if err != nil {
		return nil, err
	}

	return response.SlotsToResponse(slots), nil
}

func (s *slotService) GetSlot(ctx context.Context, slotID string) (*response.SlotResponse, error) {
	const op = "get slot"

	id, err := parseID(op, "slot id", slotID)
	if err != nil {
		return nil, err
	}

	slot, err := s.repo.Slot.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, apperror.NotFound(op, "slot %s not found", id)
	}

	resp := response.SlotToResponse(slot)
	return &resp, nil
}

func (s *slotService) ReserveSlot(ctx context.Context, slotID, professionalID, userID uuid.UUID) (*entity.Slot, error) {
	const op = "reserve slot"

	slot, err := s.repo.Slot.Hold(ctx, slotID, professionalID, userID, s.now())
	if err != nil {
		return nil, err
	}
	if slot != nil {
		return slot, nil
	}

	// The CAS matched nothing; read back only to classify the failure.
	current, err := s.repo.Slot.FindByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.ProfessionalID != professionalID {
		return nil, apperror.NotFound(op, "slot %s not found for professional %s", slotID, professionalID)
	}
	return nil, apperror.Conflict(op, "slot %s is %s", slotID, current.Status)
}

func (s *slotService) ConfirmSlot(ctx context.Context, slotID uuid.UUID) (*entity.Slot, error) {
	slot, err := s.repo.Slot.Book(ctx, slotID, s.now())
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, s.transitionFailure(ctx, "confirm slot", slotID, entity.SlotStatusBooked)
	}
	return slot, nil
}

func (s *slotService) ReleaseSlot(ctx context.Context, slotID uuid.UUID) (*entity.Slot, error) {
	slot, err := s.repo.Slot.Release(ctx, slotID, s.now())
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, s.transitionFailure(ctx, "release slot", slotID, entity.SlotStatusFree)
	}
	return slot, nil
}

func (s *slotService) transitionFailure(ctx context.Context, op string, slotID uuid.UUID, target entity.SlotStatus) error {
	current, err := s.repo.Slot.FindByID(ctx, slotID)
	if err != nil {
		return err
	}
	if current == nil {
		return apperror.NotFound(op, "slot %s not found", slotID)
	}
	return apperror.State(op, "slot %s cannot move from %s to %s", slotID, current.Status, target)
}

// authorizeProfessional allows professionals to manage only their own slots.
func (s *slotService) authorizeProfessional(ctx context.Context, op string, actor entity.Actor, professionalID string) (uuid.UUID, error) {
	profID, err := parseID(op, "professional id", professionalID)
	if err != nil {
		return uuid.Nil, err
	}
	if !actor.IsProfessional() || actor.ID != profID {
		return uuid.Nil, apperror.Ownership(op, "only professional %s may manage these slots", profID)
	}

	ok, err := s.dir.ProfessionalExists(ctx, profID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return uuid.Nil, apperror.NotFound(op, "professional %s not found", profID)
	}
	return profID, nil
}
