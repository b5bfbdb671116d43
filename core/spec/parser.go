// Package spec parses YAML job manifests used for bulk import.
package spec

import (
	"fmt"
	"strings"
	"time"

	"container-dispatch/core/models"

	"gopkg.in/yaml.v3"
)

// Manifest represents a YAML bulk import document
type Manifest struct {
	Defaults ManifestJob   `yaml:"defaults"`
	Jobs     []ManifestJob `yaml:"jobs"`
}

// ManifestJob represents one job entry of the manifest
type ManifestJob struct {
	JobNumber       string `yaml:"job_number"`
	Customer        string `yaml:"customer"`
	Uplift          string `yaml:"uplift"`
	Offload         string `yaml:"offload"`
	JobStart        string `yaml:"job_start"` // RFC 3339, "2006-01-02 15:04" or "2006-01-02"
	Size            string `yaml:"size"`
	Weight          string `yaml:"weight"`
	CommodityCode   string `yaml:"commodity_code"`
	Doors           string `yaml:"doors"`
	PIN             string `yaml:"pin"`
	Slot            string `yaml:"slot"`
	DangerousGoods  *bool  `yaml:"dg,omitempty"`
	Instructions    string `yaml:"instructions"`
	Release         string `yaml:"release"`
	ContainerNumber string `yaml:"container_number"`
	Reference       string `yaml:"reference"`
}

var jobStartLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}

// ParseManifest parses a YAML manifest into job details.
// Naive job_start values are interpreted in loc.
func ParseManifest(manifestYAML []byte, loc *time.Location) ([]models.JobDetails, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(manifestYAML, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(manifest.Jobs) == 0 {
		return nil, fmt.Errorf("manifest has no jobs")
	}
	if loc == nil {
		loc = time.UTC
	}

	details := make([]models.JobDetails, 0, len(manifest.Jobs))
	for i, entry := range manifest.Jobs {
		entry = withDefaults(entry, manifest.Defaults)

		d := models.JobDetails{
			JobNumber:       strings.TrimSpace(entry.JobNumber),
			Customer:        entry.Customer,
			Uplift:          entry.Uplift,
			Offload:         entry.Offload,
			Size:            entry.Size,
			Weight:          entry.Weight,
			CommodityCode:   entry.CommodityCode,
			Doors:           entry.Doors,
			PIN:             entry.PIN,
			Slot:            entry.Slot,
			Instructions:    entry.Instructions,
			Release:         entry.Release,
			ContainerNumber: entry.ContainerNumber,
			Reference:       entry.Reference,
		}
		if entry.DangerousGoods != nil {
			d.DangerousGoods = *entry.DangerousGoods
		}

		// Parse job start
		if entry.JobStart != "" {
			start, err := ParseJobStart(entry.JobStart, loc)
			if err != nil {
				return nil, fmt.Errorf("jobs[%d] (%s): %w", i, d.JobNumber, err)
			}
			d.JobStart = &start
		}

		details = append(details, d)
	}

	return details, nil
}

// withDefaults fills empty fields of entry from defaults
func withDefaults(entry, defaults ManifestJob) ManifestJob {
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&entry.Customer, defaults.Customer)
	fill(&entry.Uplift, defaults.Uplift)
	fill(&entry.Offload, defaults.Offload)
	fill(&entry.JobStart, defaults.JobStart)
	fill(&entry.Size, defaults.Size)
	fill(&entry.Weight, defaults.Weight)
	fill(&entry.CommodityCode, defaults.CommodityCode)
	fill(&entry.Doors, defaults.Doors)
	fill(&entry.Slot, defaults.Slot)
	fill(&entry.Instructions, defaults.Instructions)
	if entry.DangerousGoods == nil {
		entry.DangerousGoods = defaults.DangerousGoods
	}
	return entry
}

// ParseJobStart accepts the layouts dispatchers export from spreadsheets and date pickers.
// Values without an offset are read in loc.
func ParseJobStart(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range jobStartLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid job_start %q", value)
}
