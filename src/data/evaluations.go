package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/OneOfOne/xxhash"
	"gorm.io/gorm"

	"github.com/zhenghchen/calhacks2025/src/types"
)

// ErrNotFound is returned when no evaluation has the requested id.
var ErrNotFound = errors.New("data: evaluation not found")

// Evaluation is a persisted DueDiligenceDecision.
type Evaluation struct {
	ID                  string    `gorm:"primaryKey;size:36"`
	TranscriptHash      string    `gorm:"size:16;index"`
	TranscriptBytes     int       `gorm:"not null"`
	Accept              bool      `gorm:"not null;index"`
	QuantVerdict        string    `gorm:"size:8"`
	QualVerdict         string    `gorm:"size:8"`
	StratVerdict        string    `gorm:"size:8"`
	VerificationVerdict string    `gorm:"size:8"`
	Confidence          string    `gorm:"size:16"`
	Decision            string    `gorm:"type:text"`
	EvaluatedAt         time.Time `gorm:"index"`
	CreatedAt           time.Time
}

// TranscriptHash fingerprints a transcript without storing it.
func TranscriptHash(transcript string) string {
	h := xxhash.NewS64(0)
	_, _ = h.Write([]byte(transcript))
	return strconv.FormatUint(h.Sum64(), 16)
}

// Decisions stores and loads evaluations.
type Decisions struct {
	db *gorm.DB
}

func NewDecisions(db *gorm.DB) *Decisions {
	return &Decisions{db: db}
}

// Save persists d along with a fingerprint of the transcript it came from.
func (s *Decisions) Save(ctx context.Context, transcript string, d *types.DueDiligenceDecision) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("data: encode decision: %w", err)
	}
	row := Evaluation{
		ID:                  d.ID,
		TranscriptHash:      TranscriptHash(transcript),
		TranscriptBytes:     len(transcript),
		Accept:              d.Accept,
		QuantVerdict:        string(d.QuantitativeAnalysis.Verdict),
		QualVerdict:         string(d.QualitativeAnalysis.Verdict),
		StratVerdict:        string(d.StrategicAnalysis.Verdict),
		VerificationVerdict: string(d.VerificationAnalysis.Verdict),
		Confidence:          string(d.VerificationAnalysis.Confidence),
		Decision:            string(raw),
		EvaluatedAt:         d.EvaluatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("data: save evaluation %s: %w", d.ID, err)
	}
	return nil
}

// Get loads one decision by id.
func (s *Decisions) Get(ctx context.Context, id string) (*types.DueDiligenceDecision, error) {
	var row Evaluation
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("data: load evaluation %s: %w", id, err)
	}
	return decode(row)
}

// Recent lists the newest decisions first.
func (s *Decisions) Recent(ctx context.Context, limit int) ([]*types.DueDiligenceDecision, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []Evaluation
	if err := s.db.WithContext(ctx).Order("evaluated_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("data: list evaluations: %w", err)
	}
	out := make([]*types.DueDiligenceDecision, 0, len(rows))
	for _, row := range rows {
		d, err := decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func decode(row Evaluation) (*types.DueDiligenceDecision, error) {
	var d types.DueDiligenceDecision
	if err := json.Unmarshal([]byte(row.Decision), &d); err != nil {
		return nil, fmt.Errorf("data: decode evaluation %s: %w", row.ID, err)
	}
	return &d, nil
}
