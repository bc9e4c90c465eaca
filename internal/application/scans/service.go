package scans

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/subwatch/subwatch/internal/application"
	domainai "github.com/subwatch/subwatch/internal/domain/ai"
	"github.com/subwatch/subwatch/internal/domain/mailbox"
	"github.com/subwatch/subwatch/internal/domain/reports"
	domain "github.com/subwatch/subwatch/internal/domain/scans"
	"github.com/subwatch/subwatch/internal/domain/scanerrors"
	subsdomain "github.com/subwatch/subwatch/internal/domain/subscriptions"
	"github.com/subwatch/subwatch/internal/middleware"
)

// Service implements the scan use-cases: trigger a background mailbox
// scan, query scan history, and run the pipeline itself.
// Safe for concurrent use.
type Service struct {
	Logs    domain.Repository
	Subs    subsdomain.Repository
	Errors  scanerrors.Repository
	Mailbox mailbox.Client
	AI      domainai.Client
	Archive reports.Archive // optional; nil disables report archiving
	Clock   application.Clock
	Logger  *log.Logger
	Opts    Options
}

// TriggerResult is the trigger endpoint's response body.
type TriggerResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ScanID  string `json:"scanId"`
}

// Trigger starts a scan for the user. When a scan is already running the
// existing scan id is returned and nothing new is started; this is a
// success response, not an error. Otherwise previously scanned rows are
// cleared (manual entries stay), a running ScanLog is created, and the
// pipeline detaches into the background before the caller gets a reply.
func (s *Service) Trigger(ctx context.Context, userID string) (TriggerResult, error) {
	now := s.Clock.Now()
	logEntry := &domain.ScanLog{
		ID:        domain.ScanID(uuid.New().String()),
		UserID:    userID,
		Status:    domain.StatusRunning,
		StartedAt: now,
	}

	existing, created, err := s.Logs.Begin(ctx, logEntry)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("create scan log: %w", err)
	}
	if !created {
		return TriggerResult{
			Success: true,
			Message: "scan already running",
			ScanID:  string(existing.ID),
		}, nil
	}

	// Destructive by design: scan-sourced rows from the previous scan are
	// dropped before new results are confirmed. Manual entries survive.
	if err := s.Subs.DeleteScanned(ctx, userID); err != nil {
		s.finish(userID, logEntry.ID, domain.StatusFailed, 0, 0, err.Error(), "")
		return TriggerResult{}, fmt.Errorf("clear scanned subscriptions: %w", err)
	}

	middleware.IncrementScans()
	middleware.IncrementScansRunning()

	// Detach so the scan outlives this request. The pipeline owns its
	// terminal status update; nothing here waits on it.
	go func() {
		defer middleware.DecrementScansRunning()
		s.runPipeline(context.Background(), userID, logEntry)
	}()

	return TriggerResult{
		Success: true,
		Message: "email scan started",
		ScanID:  string(logEntry.ID),
	}, nil
}

// Get returns one scan log scoped to the user.
func (s *Service) Get(ctx context.Context, userID string, id domain.ScanID) (*domain.ScanLog, error) {
	return s.Logs.Get(ctx, userID, id)
}

// Latest returns the user's most recent scan logs.
func (s *Service) Latest(ctx context.Context, userID string, limit int) ([]*domain.ScanLog, error) {
	return s.Logs.Latest(ctx, userID, limit)
}

// ErrorsByScan lists the absorbed per-item failures recorded for a scan.
func (s *Service) ErrorsByScan(ctx context.Context, userID, scanID string, limit int) ([]*scanerrors.ScanError, error) {
	return s.Errors.ListByScan(ctx, userID, scanID, limit)
}

// finish performs the terminal scan-log transition. Errors here are only
// logged: there is no caller left to report them to.
func (s *Service) finish(userID string, id domain.ScanID, status domain.Status, processed, found int, errMsg, reportURL string) {
	if err := s.Logs.Finish(context.Background(), userID, id, status, s.Clock.Now(), processed, found, errMsg, reportURL); err != nil {
		s.Logger.Error("scan log finish", "scan", id, "error", err)
	}
	if status == domain.StatusFailed {
		middleware.IncrementScansFailed()
	}
}

// recordError persists one absorbed failure; best effort.
func (s *Service) recordError(userID, scanID, provider, phase string, err error) {
	e := &scanerrors.ScanError{
		UserID:    userID,
		ScanID:    scanID,
		Provider:  provider,
		Phase:     phase,
		Message:   err.Error(),
		CreatedAt: s.Clock.Now(),
	}
	if serr := s.Errors.Save(context.Background(), e); serr != nil {
		s.Logger.Warn("save scan error", "scan", scanID, "error", serr)
	}
}
