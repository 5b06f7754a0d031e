package report

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
)

// Store persists attachments and outcomes for a single run.
// It implements interfaces.ReportSink.
type Store struct {
	db     *badgerhold.Store
	runID  string
	logger arbor.ILogger
	now    func() time.Time

	closeOnce sync.Once
}

var _ interfaces.ReportSink = (*Store)(nil)

// NewStore opens the report store at path. An empty path keeps the
// store in memory for the life of the process.
func NewStore(path, runID string, logger arbor.ILogger) (*Store, error) {
	options := badgerhold.DefaultOptions
	options.Logger = nil

	if path == "" {
		options.Options = badger.DefaultOptions("").WithInMemory(true)
		options.Options.Logger = nil
	} else {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create report store directory: %w", err)
		}
		options.Dir = path
		options.ValueDir = path
	}

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}

	if runID == "" {
		runID = common.NewRunID()
	}

	logger.Debug().
		Str("path", path).
		Str("run_id", runID).
		Bool("in_memory", path == "").
		Msg("Report store opened")

	return &Store{
		db:     db,
		runID:  runID,
		logger: logger,
		now:    time.Now,
	}, nil
}

// RunID identifies the run every record in this store belongs to.
func (s *Store) RunID() string {
	return s.runID
}

// AttachFile records an existing file against testName.
func (s *Store) AttachFile(testName, path, label string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to attach %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("failed to attach %s: is a directory", path)
	}

	att := &models.Attachment{
		ID:        common.NewAttachmentID(),
		RunID:     s.runID,
		TestName:  testName,
		Label:     label,
		Path:      path,
		MimeType:  mimeTypeFor(path),
		Size:      info.Size(),
		CreatedAt: s.now(),
	}
	if err := s.db.Upsert(att.ID, att); err != nil {
		return fmt.Errorf("failed to save attachment: %w", err)
	}

	s.logger.Debug().
		Str("test", testName).
		Str("label", label).
		Str("path", path).
		Msg("File attached")
	return nil
}

// AttachBytes records inline content against testName.
func (s *Store) AttachBytes(testName, label, mimeType string, data []byte) error {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	att := &models.Attachment{
		ID:        common.NewAttachmentID(),
		RunID:     s.runID,
		TestName:  testName,
		Label:     label,
		MimeType:  mimeType,
		Size:      int64(len(data)),
		Data:      append([]byte(nil), data...),
		CreatedAt: s.now(),
	}
	if err := s.db.Upsert(att.ID, att); err != nil {
		return fmt.Errorf("failed to save attachment: %w", err)
	}

	s.logger.Debug().
		Str("test", testName).
		Str("label", label).
		Int("bytes", len(data)).
		Msg("Content attached")
	return nil
}

// RecordOutcome stores the final outcome of testName. A later call for the
// same test replaces the earlier record.
func (s *Store) RecordOutcome(testName string, outcome models.TestOutcome, duration time.Duration) error {
	rec := &models.TestRecord{
		ID:         recordID(s.runID, testName),
		RunID:      s.runID,
		TestName:   testName,
		Status:     outcome.Status,
		Message:    outcome.Message,
		StackTrace: outcome.StackTrace,
		Duration:   duration,
		FinishedAt: s.now(),
	}
	if err := s.db.Upsert(rec.ID, rec); err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}

	s.logger.Info().
		Str("test", testName).
		Str("status", string(outcome.Status)).
		Dur("duration", duration).
		Msg("Outcome recorded")
	return nil
}

// Attachments lists the attachments recorded for testName, oldest first.
func (s *Store) Attachments(testName string) ([]models.Attachment, error) {
	var atts []models.Attachment
	query := badgerhold.Where("RunID").Eq(s.runID).And("TestName").Eq(testName).SortBy("CreatedAt")
	if err := s.db.Find(&atts, query); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return atts, nil
}

// Record returns the outcome recorded for testName.
func (s *Store) Record(testName string) (*models.TestRecord, error) {
	var rec models.TestRecord
	if err := s.db.Get(recordID(s.runID, testName), &rec); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("no outcome recorded for %s", testName)
		}
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	return &rec, nil
}

// Records lists every outcome in this run, in the order tests finished.
func (s *Store) Records() ([]models.TestRecord, error) {
	var recs []models.TestRecord
	if err := s.db.Find(&recs, badgerhold.Where("RunID").Eq(s.runID).SortBy("FinishedAt")); err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	return recs, nil
}

// Close releases the underlying database. Safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
		if err == nil {
			s.logger.Debug().Str("run_id", s.runID).Msg("Report store closed")
		}
	})
	return err
}

func recordID(runID, testName string) string {
	return runID + "/" + testName
}

func mimeTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png":
		return "image/png"
	case ".zip":
		return "application/zip"
	case ".txt", ".log":
		return "text/plain"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
