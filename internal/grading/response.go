package grading

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	fenceYAML  = "```yaml"
	fencePlain = "```"
)

// Top-level keys of the model reply.
const (
	KeyIntro               = "intro"
	KeyOverallEvaluation   = "overall_evaluation"
	KeyOverallVerdict      = "overall_verdict"
	KeyCriteriaEvaluations = "criteria_specific_evaluations"
)

var requiredReplyKeys = []string{KeyIntro, KeyOverallEvaluation, KeyOverallVerdict, KeyCriteriaEvaluations}

var requiredEntryKeys = []string{"id", "name", "score_scale", "score", "justification"}

// CriterionEvaluation is the validated verdict for a single criterion.
type CriterionEvaluation struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Scale         ScoreScale `json:"score_scale"`
	Score         int        `json:"score"`
	Justification string     `json:"justification"`
}

// GradingReply is the parsed but not yet rubric-checked model reply.
type GradingReply struct {
	Intro             string
	OverallEvaluation string
	OverallVerdict    string
	Entries           []any
}

// ExtractYAMLBlock pulls the YAML payload out of free-form model output.
func ExtractYAMLBlock(text string) string {
	if start := strings.Index(text, fenceYAML); start >= 0 {
		return fencedContent(text, start+len(fenceYAML))
	}
	if start := strings.Index(text, fencePlain); start >= 0 {
		return fencedContent(text, start+len(fencePlain))
	}
	return strings.TrimSpace(text)
}

func fencedContent(text string, start int) string {
	end := strings.Index(text[start:], fencePlain)
	if end < 0 {
		return strings.TrimSpace(text[start:])
	}
	return strings.TrimSpace(text[start : start+end])
}

// ParseGradingReply decodes the YAML reply and checks its top-level shape.
func ParseGradingReply(yamlText string) (GradingReply, error) {
	var doc any
	if err := yaml.Unmarshal([]byte(yamlText), &doc); err != nil {
		return GradingReply{}, &ReplyFormatError{Reason: "failed to parse YAML from model output", Err: err}
	}

	data, ok := asMapping(doc)
	if !ok {
		return GradingReply{}, &ReplyFormatError{Reason: fmt.Sprintf("expected top-level YAML mapping, got %s", describeType(doc))}
	}

	var missing []string
	for _, key := range requiredReplyKeys {
		if _, ok := data[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return GradingReply{}, &ReplyFormatError{Reason: "missing required keys: " + strings.Join(missing, ", ")}
	}

	entries, ok := data[KeyCriteriaEvaluations].([]any)
	if !ok {
		return GradingReply{}, &ReplyFormatError{Reason: KeyCriteriaEvaluations + " must be a list of criterion entries"}
	}

	reply := GradingReply{Entries: entries}
	fields := []struct {
		key    string
		target *string
	}{
		{KeyIntro, &reply.Intro},
		{KeyOverallEvaluation, &reply.OverallEvaluation},
		{KeyOverallVerdict, &reply.OverallVerdict},
	}
	for _, f := range fields {
		value, ok := scalarText(data[f.key])
		if !ok {
			return GradingReply{}, &ReplyFormatError{Reason: fmt.Sprintf("%s must be text, got %s", f.key, describeType(data[f.key]))}
		}
		*f.target = value
	}

	return reply, nil
}

// BuildCriterionEvaluations checks every reply entry against the rubric.
//
// Entry-level problems on known criteria fail immediately. Unknown ids are
// collected, and the final coverage check reports every missing and every
// unknown id in one *CoverageError.
func BuildCriterionEvaluations(reply GradingReply, rubric Rubric) ([]CriterionEvaluation, error) {
	byLowerID := make(map[string]Criterion, len(rubric.Criteria))
	for _, c := range rubric.Criteria {
		byLowerID[strings.ToLower(c.ID)] = c
	}

	seen := make(map[string]struct{}, len(rubric.Criteria))
	extraSeen := map[string]struct{}{}
	var extra []string
	evaluations := make([]CriterionEvaluation, 0, len(reply.Entries))

	for i, raw := range reply.Entries {
		item, ok := asMapping(raw)
		if !ok {
			return nil, &ReplyFormatError{Reason: fmt.Sprintf("entry %d in %s must be a mapping", i, KeyCriteriaEvaluations)}
		}
		for _, key := range requiredEntryKeys {
			if _, ok := item[key]; !ok {
				return nil, &ReplyFormatError{Reason: fmt.Sprintf("missing key %q in criterion evaluation entry %d", key, i)}
			}
		}

		rawID := fmt.Sprint(item["id"])
		criterion, known := byLowerID[strings.ToLower(rawID)]
		if !known {
			if _, dup := extraSeen[rawID]; !dup {
				extraSeen[rawID] = struct{}{}
				extra = append(extra, rawID)
			}
			continue
		}

		evaluation, err := checkEntry(item, criterion)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[criterion.ID]; dup {
			return nil, &CriterionMismatchError{CriterionID: criterion.ID, Field: "id", Cause: ErrDuplicateCriterion}
		}
		seen[criterion.ID] = struct{}{}
		evaluations = append(evaluations, evaluation)
	}

	var missing []string
	for _, c := range rubric.Criteria {
		if _, ok := seen[c.ID]; !ok {
			missing = append(missing, c.ID)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return nil, &CoverageError{Missing: missing, Extra: extra}
	}

	return evaluations, nil
}

func checkEntry(item map[string]any, criterion Criterion) (CriterionEvaluation, error) {
	id := criterion.ID

	name, ok := item["name"].(string)
	if !ok || name != criterion.Name {
		return CriterionEvaluation{}, &CriterionMismatchError{
			CriterionID: id, Field: "name", Cause: ErrNameMismatch,
			Expected: fmt.Sprintf("%q", criterion.Name), Actual: fmt.Sprintf("%q", fmt.Sprint(item["name"])),
		}
	}

	rawScale, ok := item["score_scale"].(string)
	if !ok || ScoreScale(rawScale) != criterion.Scale {
		return CriterionEvaluation{}, &CriterionMismatchError{
			CriterionID: id, Field: "score_scale", Cause: ErrScaleMismatch,
			Expected: fmt.Sprintf("%q", criterion.Scale), Actual: fmt.Sprintf("%q", fmt.Sprint(item["score_scale"])),
		}
	}

	scale := ScoreScale(rawScale)
	bounds, ok := scale.Range()
	if !ok {
		return CriterionEvaluation{}, &CriterionMismatchError{
			CriterionID: id, Field: "score_scale", Cause: ErrUnknownScale, Actual: fmt.Sprintf("%q", rawScale),
		}
	}

	if raw, big := item["score"].(uint64); big && raw > math.MaxInt {
		return CriterionEvaluation{}, &CriterionMismatchError{
			CriterionID: id, Field: "score", Cause: ErrScoreOutOfRange,
			Expected: fmt.Sprintf("%d-%d for scale %q", bounds.Min, bounds.Max, scale), Actual: strconv.FormatUint(raw, 10),
		}
	}
	score, ok := integerValue(item["score"])
	if !ok {
		return CriterionEvaluation{}, &CriterionMismatchError{
			CriterionID: id, Field: "score", Cause: ErrScoreType,
			Expected: "integer", Actual: describeType(item["score"]),
		}
	}
	if !bounds.Contains(score) {
		return CriterionEvaluation{}, &CriterionMismatchError{
			CriterionID: id, Field: "score", Cause: ErrScoreOutOfRange,
			Expected: fmt.Sprintf("%d-%d for scale %q", bounds.Min, bounds.Max, scale), Actual: fmt.Sprint(score),
		}
	}

	justification, ok := item["justification"].(string)
	if !ok {
		return CriterionEvaluation{}, &CriterionMismatchError{
			CriterionID: id, Field: "justification", Cause: ErrJustificationType,
			Expected: "string", Actual: describeType(item["justification"]),
		}
	}

	return CriterionEvaluation{
		ID:            id,
		Name:          name,
		Scale:         scale,
		Score:         score,
		Justification: justification,
	}, nil
}

func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func integerValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func scalarText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case nil:
		return "", true
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(s), true
	default:
		return "", false
	}
}

func describeType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, uint64:
		return "integer"
	case float64:
		return "float"
	case []any:
		return "list"
	case map[string]any, map[any]any:
		return "mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}
