package grading

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Placeholder names used by the grading prompt template.
const (
	PlaceholderRubric          = "rubric"
	PlaceholderScaleValues     = "score_scale_values"
	PlaceholderScaleRanges     = "score_scale_ranges"
	PlaceholderAdditionalNotes = "other_enumerated_notes"
	PlaceholderKnowledgeArea   = "knowledge_area"
	PlaceholderCohortSpecifics = "cohort_specifics"
	PlaceholderTrackName       = "track_name"
	PlaceholderAssignment      = "assignment"
	PlaceholderTraineeName     = "trainee_name"
	PlaceholderSubmission      = "submission"
	scaleRangesHeading         = `For each criterion, choose "score" as an integer consistent with "score_scale":`
	scaleRangesLineSeparator   = "\n    "
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// PromptBuilder stages placeholder values for a prompt template and renders
// the final prompt in one strict pass.
type PromptBuilder struct {
	template string
	defaults map[string]string
}

// NewPromptBuilder starts a builder from a base template. defaults are merged
// into every Build call, explicit values taking precedence.
func NewPromptBuilder(template string, defaults map[string]string) *PromptBuilder {
	merged := make(map[string]string, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	return &PromptBuilder{template: template, defaults: merged}
}

// NewPromptBuilderFromRubric prepares a builder for grading against rubric:
// scale metadata and notes are injected and the rubric text is pre-filled.
func NewPromptBuilderFromRubric(template string, rubric Rubric, notes string) (*PromptBuilder, error) {
	builder := NewPromptBuilder(template, nil)
	if err := builder.WithScoreScaleMetadata(ScoreScales(), ScaleDescriptions()); err != nil {
		return nil, err
	}
	if notes != "" {
		builder.WithAdditionalNotes(notes)
	}
	builder.SetDefault(PlaceholderRubric, RenderRubric(rubric))
	return builder, nil
}

// LoadPromptTemplate reads a prompt template from disk.
func LoadPromptTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template %s: %w", path, err)
	}
	return string(data), nil
}

// Template returns the staged template before final rendering.
func (b *PromptBuilder) Template() string {
	return b.template
}

// Defaults returns a copy of the pre-filled values.
func (b *PromptBuilder) Defaults() map[string]string {
	out := make(map[string]string, len(b.defaults))
	for k, v := range b.defaults {
		out[k] = v
	}
	return out
}

// SetDefault pre-fills a value used by Build unless overridden.
func (b *PromptBuilder) SetDefault(name, value string) *PromptBuilder {
	b.defaults[name] = value
	return b
}

// WithPlaceholder replaces every {name} in the template with value right away.
// Repeating the call is a no-op because the token is gone.
func (b *PromptBuilder) WithPlaceholder(name, value string) *PromptBuilder {
	b.template = strings.ReplaceAll(b.template, token(name), value)
	return b
}

// WithAdditionalNotes fills the {other_enumerated_notes} slot.
func (b *PromptBuilder) WithAdditionalNotes(notes string) *PromptBuilder {
	return b.WithPlaceholder(PlaceholderAdditionalNotes, notes)
}

// WithScoreScaleMetadata injects the allowed scale tokens and one usage line
// per scale. Every scale must have a description.
func (b *PromptBuilder) WithScoreScaleMetadata(scales []ScoreScale, descriptions map[ScoreScale]string) error {
	if len(scales) == 0 {
		return fmt.Errorf("%w: no score scales declared", ErrMissingScaleDescription)
	}

	var missing []string
	for _, scale := range scales {
		if strings.TrimSpace(descriptions[scale]) == "" {
			missing = append(missing, string(scale))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingScaleDescription, strings.Join(missing, ", "))
	}

	values := make([]string, 0, len(scales))
	lines := []string{scaleRangesHeading}
	for _, scale := range scales {
		values = append(values, strconv.Quote(string(scale)))
		lines = append(lines, fmt.Sprintf("- %q → %s", string(scale), descriptions[scale]))
	}

	b.WithPlaceholder(PlaceholderScaleValues, strings.Join(values, ", "))
	b.WithPlaceholder(PlaceholderScaleRanges, strings.Join(lines, scaleRangesLineSeparator))
	return nil
}

// Placeholders lists the placeholder names still present in the template.
func (b *PromptBuilder) Placeholders() []string {
	return placeholdersIn(b.template)
}

// ValidatePlaceholders returns the placeholders not covered by the defaults or
// the given keys. An empty result means Build will not fail for those keys.
func (b *PromptBuilder) ValidatePlaceholders(keys []string) []string {
	known := make(map[string]struct{}, len(b.defaults)+len(keys))
	for k := range b.defaults {
		known[k] = struct{}{}
	}
	for _, k := range keys {
		known[k] = struct{}{}
	}

	var missing []string
	for _, name := range b.Placeholders() {
		if _, ok := known[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Build renders the final prompt. Values override defaults; any placeholder
// without a value fails with *UnresolvedPlaceholderError.
func (b *PromptBuilder) Build(values map[string]string) (string, error) {
	merged := b.Defaults()
	for k, v := range values {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	if missing := b.ValidatePlaceholders(keys); len(missing) > 0 {
		return "", &UnresolvedPlaceholderError{Keys: missing}
	}

	pairs := make([]string, 0, len(merged)*2)
	for k, v := range merged {
		pairs = append(pairs, token(k), v)
	}
	return strings.NewReplacer(pairs...).Replace(b.template), nil
}

// RenderRubric formats a rubric as the text injected into {rubric}.
func RenderRubric(rubric Rubric) string {
	var lines []string

	if rubric.Title != "" {
		lines = append(lines, rubric.Title)
	}
	if rubric.Description != "" {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, rubric.Description)
	}

	lines = append(lines, "",
		fmt.Sprintf("Overall max score: %s (passing: %s or higher).",
			formatNumber(rubric.OverallMaxScore), formatNumber(rubric.MinPassingScore)),
		"",
		"Criteria:",
	)

	for _, c := range rubric.Criteria {
		heading := fmt.Sprintf("- [%s] %s (weight: %s, scale: %q)", c.ID, c.Name, formatNumber(c.Weight), string(c.Scale))
		if c.Description == "" {
			lines = append(lines, heading)
			continue
		}
		lines = append(lines, heading+":", "  "+c.Description)
	}

	return strings.Join(lines, "\n")
}

func placeholdersIn(template string) []string {
	seen := map[string]struct{}{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		seen[match[1]] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func token(name string) string {
	return "{" + name + "}"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
