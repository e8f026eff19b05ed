package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringList stores an ordered list of strings as a JSON column.
type StringList []string

// Value implements the driver.Valuer interface.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	return json.Unmarshal(bytes, l)
}

// Contains reports whether the list holds the given value.
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// Report status values. Status only ever moves forward through these four
// states; official confirmation is tracked separately on ConfirmedByID.
const (
	ReportStatusReported   = "reported"
	ReportStatusVerified   = "verified"
	ReportStatusResponding = "responding"
	ReportStatusResolved   = "resolved"
)

// Incident types accepted on submission.
const (
	IncidentFire               = "fire"
	IncidentFlood              = "flood"
	IncidentEarthquake         = "earthquake"
	IncidentStorm              = "storm"
	IncidentRoadAccident       = "road_accident"
	IncidentEpidemic           = "epidemic"
	IncidentLandslide          = "landslide"
	IncidentGasLeak            = "gas_leak"
	IncidentBuildingCollapse   = "building_collapse"
	IncidentChemicalSpill      = "chemical_spill"
	IncidentPowerOutage        = "power_outage"
	IncidentWaterContamination = "water_contamination"
	IncidentOther              = "other"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// IsValidStatus checks a status string against the four-state lifecycle.
func IsValidStatus(status string) bool {
	switch status {
	case ReportStatusReported, ReportStatusVerified, ReportStatusResponding, ReportStatusResolved:
		return true
	}
	return false
}

// statusRank maps each lifecycle status to its position. Used to enforce
// forward-only transitions.
var statusRank = map[string]int{
	ReportStatusReported:   0,
	ReportStatusVerified:   1,
	ReportStatusResponding: 2,
	ReportStatusResolved:   3,
}

// StatusRank returns the forward-ordering rank of a status, -1 if unknown.
func StatusRank(status string) int {
	if r, ok := statusRank[status]; ok {
		return r
	}
	return -1
}

type Report struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UUID        string `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	ReporterID  uint   `gorm:"index" json:"reporter_id"`
	Reporter    User   `gorm:"foreignKey:ReporterID" json:"reporter,omitempty" validate:"-"`
	Title       string `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=5,max=255"`
	Description string `gorm:"type:text" json:"description" validate:"required,min=10"`
	Type        string `gorm:"type:varchar(50);not null;index" json:"type" validate:"oneof=fire flood earthquake storm road_accident epidemic landslide gas_leak building_collapse chemical_spill power_outage water_contamination other"`
	Severity    string `gorm:"type:varchar(20);not null" json:"severity" validate:"oneof=low medium high critical"`

	LocationText string     `gorm:"type:varchar(255)" json:"location_text"`
	Latitude     *float64   `gorm:"type:decimal(10,8)" json:"latitude,omitempty"`
	Longitude    *float64   `gorm:"type:decimal(11,8)" json:"longitude,omitempty"`
	MediaURLs    StringList `gorm:"type:json" json:"media_urls"`
	OccurredAt   time.Time  `gorm:"type:datetime" json:"occurred_at"`

	// ViewCount is maintained out of band by the metrics counter flusher.
	ViewCount int `gorm:"default:0" json:"view_count"`

	// Derived trust fields. Owned exclusively by the trust engine - clients
	// never write these directly.
	Upvotes           int        `gorm:"default:0" json:"upvotes"`
	Downvotes         int        `gorm:"default:0" json:"downvotes"`
	VerificationCount int        `gorm:"default:0" json:"verification_count"`
	ConsensusScore    int        `gorm:"default:0" json:"consensus_score"`
	Status            string     `gorm:"type:varchar(20);default:'reported';index" json:"status"`
	ConfirmedByID     *uint      `gorm:"index" json:"confirmed_by_id,omitempty"`
	ConfirmedBy       *User      `gorm:"foreignKey:ConfirmedByID" json:"confirmed_by,omitempty" validate:"-"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	AIValidationScore *int       `json:"ai_validation_score,omitempty"`
	FakeScore         *int       `json:"fake_detection_score,omitempty"`
	FakeFlags         StringList `gorm:"type:json" json:"fake_detection_flags"`
	SimilarReportIDs  StringList `gorm:"type:json" json:"similar_report_ids"`

	// Version is bumped by exactly 1 on every mutation and guards
	// optimistic-concurrency updates.
	Version   int            `gorm:"default:1;not null" json:"version"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Report) Validate() error {
	v := validator.New()

	return v.Struct(r)
}

// NewReport builds a freshly submitted report with all trust fields at their
// zero state.
func NewReport(reporterID uint, title, description, incidentType, severity string) *Report {
	return &Report{
		UUID:             uuid.New().String(),
		ReporterID:       reporterID,
		Title:            title,
		Description:      description,
		Type:             incidentType,
		Severity:         severity,
		Status:           ReportStatusReported,
		MediaURLs:        StringList{},
		FakeFlags:        StringList{},
		SimilarReportIDs: StringList{},
		Version:          1,
	}
}

// IsConfirmed reports whether the report carries an official confirmation.
func (r *Report) IsConfirmed() bool {
	return r.ConfirmedByID != nil
}
