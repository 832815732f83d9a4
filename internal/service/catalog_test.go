package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skin-lesion-advisor/internal/domain"
)

func validCondition(label string) domain.ConditionRecord {
	return domain.ConditionRecord{
		Label:             label,
		DisplayName:       label + " display",
		Description:       "A test condition.",
		Severity:          domain.SeverityLow,
		UrgencyLevel:      domain.UrgencyLow,
		ImmediateActions:  []string{"rest"},
		Medications:       []string{"none"},
		WhenToSeekHelp:    []string{"if worse"},
		PreventionTips:    []string{"wash hands"},
		EstimatedRecovery: "1 week",
		ContagiousPeriod:  "none",
	}
}

func TestDefaultCatalog(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Equal(t, 6, catalog.Len())
	assert.Equal(t, []string{"Chickenpox", "Cowpox", "HFMD", "Healthy", "Measles", "Monkeypox"}, catalog.Labels())

	expected := map[string]struct {
		severity domain.Severity
		urgency  domain.UrgencyLevel
	}{
		"Chickenpox": {domain.SeverityMedium, domain.UrgencyMedium},
		"Cowpox":     {domain.SeverityLow, domain.UrgencyLow},
		"Healthy":    {domain.SeverityNone, domain.UrgencyNone},
		"HFMD":       {domain.SeverityMedium, domain.UrgencyMedium},
		"Measles":    {domain.SeverityHigh, domain.UrgencyHigh},
		"Monkeypox":  {domain.SeverityHigh, domain.UrgencyHigh},
	}
	for label, want := range expected {
		record, ok := catalog.Lookup(label)
		require.True(t, ok, label)
		assert.Equal(t, label, record.Label)
		assert.Equal(t, want.severity, record.Severity, label)
		assert.Equal(t, want.urgency, record.UrgencyLevel, label)
		assert.NotEmpty(t, record.ImmediateActions, label)
		assert.NotEmpty(t, record.Medications, label)
		assert.NotEmpty(t, record.WhenToSeekHelp, label)
		assert.NotEmpty(t, record.PreventionTips, label)
	}

	measles, _ := catalog.Lookup("Measles")
	assert.Equal(t, "Measles (Rubeola)", measles.DisplayName)
	assert.Equal(t, "4 days before to 4 days after rash appears", measles.ContagiousPeriod)
}

func TestCatalog_LookupIsExact(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	for _, label := range []string{"measles", "MEASLES", " Measles", "Measles ", "", "Unknown"} {
		_, ok := catalog.Lookup(label)
		assert.False(t, ok, "label %q", label)
	}
}

func TestCatalog_LookupReturnsCopies(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	first, ok := catalog.Lookup("Chickenpox")
	require.True(t, ok)
	first.ImmediateActions[0] = "tampered"
	first.Description = "tampered"

	second, _ := catalog.Lookup("Chickenpox")
	assert.NotEqual(t, "tampered", second.ImmediateActions[0])
	assert.NotEqual(t, "tampered", second.Description)

	labels := catalog.Labels()
	labels[0] = "tampered"
	assert.Equal(t, "Chickenpox", catalog.Labels()[0])
}

func TestNewCatalog_IsolatedFromInput(t *testing.T) {
	records := []domain.ConditionRecord{validCondition("Rash")}
	catalog, err := NewCatalog(records)
	require.NoError(t, err)

	records[0].Medications[0] = "tampered"
	record, _ := catalog.Lookup("Rash")
	assert.Equal(t, "none", record.Medications[0])
}

func TestNewCatalog_LaterEntryWins(t *testing.T) {
	override := validCondition("Rash")
	override.Description = "Override."

	catalog, err := NewCatalog([]domain.ConditionRecord{validCondition("Rash"), override})
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.Len())
	record, _ := catalog.Lookup("Rash")
	assert.Equal(t, "Override.", record.Description)
}

func TestValidateCondition(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.ConditionRecord)
		field  string
	}{
		{"empty label", func(r *domain.ConditionRecord) { r.Label = " " }, "label"},
		{"empty display name", func(r *domain.ConditionRecord) { r.DisplayName = "" }, "display_name"},
		{"empty description", func(r *domain.ConditionRecord) { r.Description = "" }, "description"},
		{"unknown severity", func(r *domain.ConditionRecord) { r.Severity = "Critical" }, "severity"},
		{"unknown urgency", func(r *domain.ConditionRecord) { r.UrgencyLevel = "urgent" }, "urgency_level"},
		{"mismatched urgency", func(r *domain.ConditionRecord) { r.UrgencyLevel = domain.UrgencyHigh }, "urgency_level"},
		{"no actions", func(r *domain.ConditionRecord) { r.ImmediateActions = nil }, "immediate_actions"},
		{"blank medication", func(r *domain.ConditionRecord) { r.Medications = []string{""} }, "medications"},
		{"no seek help", func(r *domain.ConditionRecord) { r.WhenToSeekHelp = []string{} }, "when_to_seek_help"},
		{"no prevention", func(r *domain.ConditionRecord) { r.PreventionTips = nil }, "prevention_tips"},
		{"no recovery", func(r *domain.ConditionRecord) { r.EstimatedRecovery = "" }, "estimated_recovery"},
		{"no contagious period", func(r *domain.ConditionRecord) { r.ContagiousPeriod = "" }, "contagious_period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := validCondition("Rash")
			tt.mutate(&record)

			err := ValidateCondition(record)
			require.Error(t, err)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.NoError(t, ValidateCondition(validCondition("Rash")))
}

func TestNewCatalog_RejectsInvalidEntries(t *testing.T) {
	bad := validCondition("Rash")
	bad.Severity = domain.SeverityHigh

	_, err := NewCatalog([]domain.ConditionRecord{validCondition("Other"), bad})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Contains(t, err.Error(), "catalog entry 1")
}

func TestParseCatalog(t *testing.T) {
	t.Run("rejects unknown keys", func(t *testing.T) {
		_, err := ParseCatalog([]byte("conditions:\n  - label: Rash\n    colour: red\n"))
		require.Error(t, err)
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("rejects empty document", func(t *testing.T) {
		_, err := ParseCatalog(nil)
		require.Error(t, err)
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("decodes records", func(t *testing.T) {
		records, err := ParseCatalog(defaultCatalogData)
		require.NoError(t, err)
		assert.Len(t, records, 6)
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Run("defaults only", func(t *testing.T) {
		catalog, err := LoadCatalog("")
		require.NoError(t, err)
		assert.Equal(t, 6, catalog.Len())
	})

	t.Run("extension file adds and overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "extra.yaml")
		content := `conditions:
  - label: Scabies
    display_name: Scabies
    severity: Medium
    urgency_level: medium
    description: Mite infestation of the skin.
    immediate_actions: [Wash bedding in hot water]
    medications: [Permethrin cream as prescribed]
    when_to_seek_help: [Itching persists after treatment]
    prevention_tips: [Avoid prolonged skin contact with infected people]
    estimated_recovery: 2-4 weeks
    contagious_period: Until treated
  - label: Cowpox
    display_name: Cowpox (override)
    severity: Low
    urgency_level: low
    description: Overridden description.
    immediate_actions: [Keep lesions covered]
    medications: [Pain relief]
    when_to_seek_help: [Fever]
    prevention_tips: [Wear gloves]
    estimated_recovery: 6-12 weeks
    contagious_period: Low
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		catalog, err := LoadCatalog(path)
		require.NoError(t, err)
		assert.Equal(t, 7, catalog.Len())

		scabies, ok := catalog.Lookup("Scabies")
		require.True(t, ok)
		assert.Equal(t, domain.UrgencyMedium, scabies.UrgencyLevel)

		cowpox, _ := catalog.Lookup("Cowpox")
		assert.Equal(t, "Overridden description.", cowpox.Description)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid extension fails loudly", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("conditions:\n  - label: Broken\n"), 0o600))

		_, err := LoadCatalog(path)
		require.Error(t, err)
		assert.True(t, domain.IsValidationError(err))
	})
}
