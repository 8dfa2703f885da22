package align

import "fmt"

// Config holds the thresholds of the alignment heuristics.
type Config struct {
	// KeyIoUThreshold is the IoU a fine word must exceed to anchor a key
	// when no word matches its label text.
	KeyIoUThreshold float64 `mapstructure:"key_iou_threshold" yaml:"key_iou_threshold" json:"key_iou_threshold"`
	// ResultIoUThreshold is the IoU a fine word must exceed to replace a
	// key's final box.
	ResultIoUThreshold float64 `mapstructure:"result_iou_threshold" yaml:"result_iou_threshold" json:"result_iou_threshold"`
	// ValueOverlapThreshold is the minimum share of a coarse word that must
	// fall inside a value box for the word to be part of that value.
	ValueOverlapThreshold float64 `mapstructure:"value_overlap_threshold" yaml:"value_overlap_threshold" json:"value_overlap_threshold"`
	ContainmentTolerance  float64 `mapstructure:"containment_tolerance" yaml:"containment_tolerance" json:"containment_tolerance"`
	ProximityRadius       float64 `mapstructure:"proximity_radius" yaml:"proximity_radius" json:"proximity_radius"`
	RefineRadius          float64 `mapstructure:"refine_radius" yaml:"refine_radius" json:"refine_radius"`
	// SameLineFactor times the mean word height bounds the vertical centre
	// difference of two words on one line.
	SameLineFactor float64 `mapstructure:"same_line_factor" yaml:"same_line_factor" json:"same_line_factor"`
	// LineSplitFactor times the mean word height is the vertical gap that
	// starts a new value line.
	LineSplitFactor float64 `mapstructure:"line_split_factor" yaml:"line_split_factor" json:"line_split_factor"`
	EtcPrefixLength int     `mapstructure:"etc_prefix_length" yaml:"etc_prefix_length" json:"etc_prefix_length"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		KeyIoUThreshold:       0.6,
		ResultIoUThreshold:    0.6,
		ValueOverlapThreshold: 0.6,
		ContainmentTolerance:  30,
		ProximityRadius:       50,
		RefineRadius:          50,
		SameLineFactor:        0.5,
		LineSplitFactor:       1.5,
		EtcPrefixLength:       10,
	}
}

// Validate checks that all thresholds are usable.
func (c Config) Validate() error {
	ratios := []struct {
		name  string
		value float64
	}{
		{"key_iou_threshold", c.KeyIoUThreshold},
		{"result_iou_threshold", c.ResultIoUThreshold},
		{"value_overlap_threshold", c.ValueOverlapThreshold},
	}
	for _, r := range ratios {
		if r.value < 0 || r.value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", r.name, r.value)
		}
	}
	if c.ContainmentTolerance < 0 {
		return fmt.Errorf("containment_tolerance must be non-negative, got %f", c.ContainmentTolerance)
	}
	positives := []struct {
		name  string
		value float64
	}{
		{"proximity_radius", c.ProximityRadius},
		{"refine_radius", c.RefineRadius},
		{"same_line_factor", c.SameLineFactor},
		{"line_split_factor", c.LineSplitFactor},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %f", p.name, p.value)
		}
	}
	if c.EtcPrefixLength <= 0 {
		return fmt.Errorf("etc_prefix_length must be positive, got %d", c.EtcPrefixLength)
	}
	return nil
}
