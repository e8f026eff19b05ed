package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []string{ReportStatusReported, ReportStatusVerified, ReportStatusResponding, ReportStatusResolved} {
		assert.True(t, IsValidStatus(status), status)
	}
	assert.False(t, IsValidStatus("closed"))
	assert.False(t, IsValidStatus(""))
}

func TestStatusRank_ForwardOrdering(t *testing.T) {
	t.Parallel()

	assert.Less(t, StatusRank(ReportStatusReported), StatusRank(ReportStatusVerified))
	assert.Less(t, StatusRank(ReportStatusVerified), StatusRank(ReportStatusResponding))
	assert.Less(t, StatusRank(ReportStatusResponding), StatusRank(ReportStatusResolved))
	assert.Equal(t, -1, StatusRank("unknown"))
}

func TestNewReport_Defaults(t *testing.T) {
	t.Parallel()

	report := NewReport(7, "Bridge closed after landslide", "Debris covering both lanes", IncidentLandslide, SeverityCritical)
	assert.NotEmpty(t, report.UUID)
	assert.Equal(t, uint(7), report.ReporterID)
	assert.Equal(t, ReportStatusReported, report.Status)
	assert.Equal(t, 1, report.Version)
	assert.False(t, report.IsConfirmed())
	assert.Empty(t, report.FakeFlags)
	assert.Empty(t, report.SimilarReportIDs)
}

func TestReport_Validate(t *testing.T) {
	t.Parallel()

	valid := NewReport(1, "Flooded underpass", "Water level rising fast near the station", IncidentFlood, SeverityHigh)
	assert.NoError(t, valid.Validate())

	tooShort := NewReport(1, "Fire", "Smoke", IncidentFire, SeverityLow)
	assert.Error(t, tooShort.Validate())

	badType := NewReport(1, "Something happened", "A longer description of the event", "meteor", SeverityLow)
	assert.Error(t, badType.Validate())
}

func TestStringList_Contains(t *testing.T) {
	t.Parallel()

	list := StringList{"a", "b"}
	assert.True(t, list.Contains("a"))
	assert.False(t, list.Contains("c"))
}

func TestStringList_ScanValue(t *testing.T) {
	t.Parallel()

	list := StringList{"x", "y"}
	value, err := list.Value()
	require.NoError(t, err)

	var restored StringList
	require.NoError(t, restored.Scan(value))
	assert.Equal(t, list, restored)
}
