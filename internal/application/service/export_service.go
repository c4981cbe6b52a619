package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/xuri/excelize/v2"
)

const historySheet = "History"

var historyHeader = []string{"#", "Timestamp (UTC)", "From", "From name", "To", "To name", "User", "Comment"}

// HistoryReader is the read side of the lifecycle engine used by exports
type HistoryReader interface {
	GetHistory(ctx context.Context, vehicleID int64) ([]*entity.StateHistoryEntry, error)
	GetAllStates(ctx context.Context) ([]*entity.State, error)
}

// ExportService renders lifecycle data as spreadsheets
type ExportService interface {
	// ExportHistory writes the vehicle's ledger as an xlsx workbook to w
	ExportHistory(ctx context.Context, vehicleID int64, w io.Writer) error
}

type exportServiceImpl struct {
	history  HistoryReader
	vehicles port.VehicleRepository
	users    port.UserRepository
	comments port.StateCommentRepository
	logger   Logger
}

// NewExportService creates a new ExportService
func NewExportService(
	history HistoryReader,
	vehicles port.VehicleRepository,
	users port.UserRepository,
	comments port.StateCommentRepository,
	logger Logger,
) ExportService {
	return &exportServiceImpl{
		history:  history,
		vehicles: vehicles,
		users:    users,
		comments: comments,
		logger:   logger,
	}
}

func (s *exportServiceImpl) ExportHistory(ctx context.Context, vehicleID int64, w io.Writer) error {
	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return fmt.Errorf("get vehicle: %w", err)
	}
	if vehicle == nil {
		return fmt.Errorf("%w: vehicle %d", entity.ErrNotFound, vehicleID)
	}

	entries, err := s.history.GetHistory(ctx, vehicleID)
	if err != nil {
		return err
	}
	states, err := s.history.GetAllStates(ctx)
	if err != nil {
		return err
	}
	byID := make(map[int64]*entity.State, len(states))
	for _, st := range states {
		byID[st.ID] = st
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "State history " + vehicle.VIN,
		Creator: "vehicle-service-tracker",
	}); err != nil {
		return fmt.Errorf("failed to set document properties: %w", err)
	}

	if err := s.writeHeader(f); err != nil {
		return err
	}

	users := make(map[int64]string)
	comments := make(map[int64]string)
	for i, entry := range entries {
		row, err := s.historyRow(ctx, i+1, entry, byID, users, comments)
		if err != nil {
			return err
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(historySheet, "B", "B", 22); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(historySheet, "D", "H", 24); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		s.logger.Error("Failed to write history workbook", "error", err, "vehicle_id", vehicleID)
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("History exported", "vehicle_id", vehicleID, "entries", len(entries))
	return nil
}

func (s *exportServiceImpl) writeHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(historyHeader))
	for i, h := range historyHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(historyHeader), 1)
	if err := f.SetCellStyle(historySheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return nil
}

func (s *exportServiceImpl) historyRow(
	ctx context.Context,
	seq int,
	entry *entity.StateHistoryEntry,
	states map[int64]*entity.State,
	users, comments map[int64]string,
) ([]interface{}, error) {
	fromCode, fromName := "", ""
	if entry.FromStateID != nil {
		fromCode, fromName = stateLabels(states, *entry.FromStateID)
	}
	toCode, toName := stateLabels(states, entry.ToStateID)

	username, ok := users[entry.UserID]
	if !ok {
		user, err := s.users.GetByID(ctx, entry.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		if user != nil {
			username = user.Username
		}
		users[entry.UserID] = username
	}

	comment := ""
	if entry.CommentID != nil {
		text, ok := comments[*entry.CommentID]
		if !ok {
			c, err := s.comments.GetByID(ctx, *entry.CommentID)
			if err != nil {
				return nil, fmt.Errorf("get comment: %w", err)
			}
			if c != nil {
				text = c.Comment
			}
			comments[*entry.CommentID] = text
		}
		comment = text
	}

	return []interface{}{
		seq,
		entry.Timestamp.UTC().Format(time.DateTime),
		fromCode, fromName,
		toCode, toName,
		username,
		comment,
	}, nil
}

func stateLabels(states map[int64]*entity.State, id int64) (string, string) {
	if st, ok := states[id]; ok {
		return st.Code, st.Name
	}
	return fmt.Sprintf("#%d", id), ""
}
