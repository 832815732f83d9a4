package service

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skin-lesion-advisor/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalogData []byte

// catalogFile is the on-disk layout of a catalog document
type catalogFile struct {
	Conditions []domain.ConditionRecord `yaml:"conditions"`
}

// Catalog is the read-only registry of conditions the classifier can emit.
// It is immutable once built and may be shared between goroutines.
type Catalog struct {
	entries map[string]domain.ConditionRecord
	labels  []string
}

// NewCatalog validates the records and builds a catalog from them. A later
// record with the same label replaces an earlier one.
func NewCatalog(records []domain.ConditionRecord) (*Catalog, error) {
	entries := make(map[string]domain.ConditionRecord, len(records))
	for i, record := range records {
		if err := ValidateCondition(record); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		entries[record.Label] = record.Clone()
	}

	labels := make([]string, 0, len(entries))
	for label := range entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	return &Catalog{entries: entries, labels: labels}, nil
}

// DefaultCatalog builds the catalog from the embedded condition data.
func DefaultCatalog() (*Catalog, error) {
	records, err := ParseCatalog(defaultCatalogData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded catalog: %w", err)
	}
	return NewCatalog(records)
}

// LoadCatalog builds the default catalog and, when path is set, layers the
// entries of that file on top of it.
func LoadCatalog(path string) (*Catalog, error) {
	records, err := ParseCatalog(defaultCatalogData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded catalog: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
		}
		extra, err := ParseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
		}
		records = append(records, extra...)
	}

	return NewCatalog(records)
}

// ParseCatalog decodes a YAML catalog document. Unknown keys are rejected.
func ParseCatalog(data []byte) ([]domain.ConditionRecord, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file catalogFile
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.NewValidationError("conditions", "catalog document is empty", nil)
		}
		return nil, domain.NewValidationError("conditions", err.Error(), nil)
	}
	return file.Conditions, nil
}

// ValidateCondition checks that a catalog record is complete and consistent.
func ValidateCondition(record domain.ConditionRecord) error {
	if strings.TrimSpace(record.Label) == "" {
		return domain.NewValidationError("label", "label is required", record.Label)
	}
	if strings.TrimSpace(record.DisplayName) == "" {
		return domain.NewValidationError("display_name", "display name is required", record.Label)
	}
	if strings.TrimSpace(record.Description) == "" {
		return domain.NewValidationError("description", "description is required", record.Label)
	}
	if !record.Severity.IsValid() {
		return domain.NewValidationError("severity", "unknown severity", record.Severity)
	}
	if !record.UrgencyLevel.IsValid() {
		return domain.NewValidationError("urgency_level", "unknown urgency level", record.UrgencyLevel)
	}
	if record.Severity.MatchingUrgency() != record.UrgencyLevel {
		return domain.NewValidationError("urgency_level",
			fmt.Sprintf("urgency %q does not match severity %q", record.UrgencyLevel, record.Severity),
			record.Label)
	}

	lists := []struct {
		field string
		items []string
	}{
		{"immediate_actions", record.ImmediateActions},
		{"medications", record.Medications},
		{"when_to_seek_help", record.WhenToSeekHelp},
		{"prevention_tips", record.PreventionTips},
	}
	for _, list := range lists {
		if len(list.items) == 0 {
			return domain.NewValidationError(list.field, "at least one entry is required", record.Label)
		}
		for _, item := range list.items {
			if strings.TrimSpace(item) == "" {
				return domain.NewValidationError(list.field, "entries must not be blank", record.Label)
			}
		}
	}

	if strings.TrimSpace(record.EstimatedRecovery) == "" {
		return domain.NewValidationError("estimated_recovery", "estimated recovery is required", record.Label)
	}
	if strings.TrimSpace(record.ContagiousPeriod) == "" {
		return domain.NewValidationError("contagious_period", "contagious period is required", record.Label)
	}
	return nil
}

// Lookup returns a copy of the record for label. Matching is exact and case-sensitive.
func (c *Catalog) Lookup(label string) (domain.ConditionRecord, bool) {
	record, ok := c.entries[label]
	if !ok {
		return domain.ConditionRecord{}, false
	}
	return record.Clone(), true
}

// Labels returns the known labels in sorted order.
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Len returns the number of conditions.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Records returns copies of every condition, ordered by label.
func (c *Catalog) Records() []domain.ConditionRecord {
	out := make([]domain.ConditionRecord, 0, len(c.labels))
	for _, label := range c.labels {
		out = append(out, c.entries[label].Clone())
	}
	return out
}
