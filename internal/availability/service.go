package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slotline/booking-platform/pkg/logging"
)

// Query carries one availability request after parameter parsing.
type Query struct {
	Table           string
	StartField      string
	EndField        string
	SlotMinutes     int
	BufferMinutes   int
	Limit           int
	ExcludeWeekends bool
	TZOffsetMinutes int
	WorkdayStart    string
	WorkdayEnd      string
	RangeStart      time.Time
	RangeEnd        time.Time
	Filters         map[string]string
	StatusField     string
	ExcludeStatuses []string
}

// Meta echoes the effective parameters of a slot computation.
type Meta struct {
	Table           string    `json:"table"`
	StartField      string    `json:"start_field"`
	EndField        string    `json:"end_field"`
	RangeStart      time.Time `json:"range_start"`
	RangeEnd        time.Time `json:"range_end"`
	SlotMinutes     int       `json:"slot_minutes"`
	BufferMinutes   int       `json:"buffer_minutes"`
	TZOffsetMinutes int       `json:"tz_offset_minutes"`
	ExcludeWeekends bool      `json:"exclude_weekends"`
	TotalBusy       int       `json:"total_busy"`
	TotalSlots      int       `json:"total_slots"`
}

// Result is a computed set of open slots plus its meta block.
type Result struct {
	Slots []Slot `json:"slots"`
	Meta  Meta   `json:"meta"`
}

// Service computes open slots from stored busy records. Reads are
// stale-tolerant; a just-consumed slot may rarely still be offered.
type Service struct {
	db     Querier
	cache  *SlotCache
	logger *logging.Logger
}

// NewService creates an availability service.
func NewService(db Querier, cache *SlotCache, logger *logging.Logger) *Service {
	if db == nil {
		panic("availability: querier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, cache: cache, logger: logger}
}

// FindSlots resolves the table's time columns, loads busy records
// intersecting the padded range, and generates open slots.
func (s *Service) FindSlots(ctx context.Context, q Query) (*Result, error) {
	workStart, err := ParseClock(q.WorkdayStart)
	if err != nil {
		return nil, err
	}
	workEnd, err := ParseClock(q.WorkdayEnd)
	if err != nil {
		return nil, err
	}
	if workEnd <= workStart {
		return nil, errValidation("workday_end must be after workday_start")
	}
	if !q.RangeEnd.After(q.RangeStart) {
		return nil, errValidation("range_end must be after range_start")
	}

	if cached, ok := s.cache.Get(ctx, q); ok {
		return cached, nil
	}

	mapping, err := ResolveFields(ctx, s.db, q.Table, q.StartField, q.EndField)
	if err != nil {
		return nil, err
	}

	buffer := time.Duration(q.BufferMinutes) * time.Minute
	records, err := s.fetchBusyRecords(ctx, q, mapping, buffer)
	if err != nil {
		return nil, err
	}
	busy := NormalizeBusy(records, buffer)

	slots, err := GenerateSlots(GenerateParams{
		RangeStart:      q.RangeStart,
		RangeEnd:        q.RangeEnd,
		SlotDuration:    time.Duration(q.SlotMinutes) * time.Minute,
		WorkdayStartMin: workStart,
		WorkdayEndMin:   workEnd,
		TZOffset:        time.Duration(q.TZOffsetMinutes) * time.Minute,
		ExcludeWeekends: q.ExcludeWeekends,
		Limit:           q.Limit,
	}, busy)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Slots: slots,
		Meta: Meta{
			Table:           q.Table,
			StartField:      mapping.StartField,
			EndField:        mapping.EndField,
			RangeStart:      q.RangeStart,
			RangeEnd:        q.RangeEnd,
			SlotMinutes:     q.SlotMinutes,
			BufferMinutes:   q.BufferMinutes,
			TZOffsetMinutes: q.TZOffsetMinutes,
			ExcludeWeekends: q.ExcludeWeekends,
			TotalBusy:       len(busy),
			TotalSlots:      len(slots),
		},
	}
	s.cache.Set(ctx, q, result)
	return result, nil
}

// fetchBusyRecords loads rows intersecting [rangeStart-buffer, rangeEnd+buffer).
// Filter values are bound parameters; identifiers are validated before use.
func (s *Service) fetchBusyRecords(ctx context.Context, q Query, mapping FieldMapping, buffer time.Duration) ([]RawRecord, error) {
	startCol := quoteIdent(mapping.StartField)
	endCol := quoteIdent(mapping.EndField)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s, %s FROM %s WHERE %s < $1 AND %s > $2",
		startCol, endCol, quoteIdent(q.Table), startCol, endCol)

	args := []any{q.RangeEnd.Add(buffer), q.RangeStart.Add(-buffer)}

	for col, val := range q.Filters {
		if !validIdent(col) {
			return nil, errValidation("invalid filter column %q", col)
		}
		args = append(args, val)
		fmt.Fprintf(&sb, " AND %s = $%d", quoteIdent(col), len(args))
	}
	if q.StatusField != "" && len(q.ExcludeStatuses) > 0 {
		if !validIdent(q.StatusField) {
			return nil, errValidation("invalid status column %q", q.StatusField)
		}
		for _, status := range q.ExcludeStatuses {
			args = append(args, status)
			fmt.Fprintf(&sb, " AND %s <> $%d", quoteIdent(q.StatusField), len(args))
		}
	}
	fmt.Fprintf(&sb, " ORDER BY %s ASC", startCol)

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("availability: select busy records: %w", err)
	}
	defer rows.Close()

	var records []RawRecord
	for rows.Next() {
		var rec RawRecord
		if err := rows.Scan(&rec.Start, &rec.End); err != nil {
			return nil, fmt.Errorf("availability: scan busy record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate busy records: %w", err)
	}
	return records, nil
}
