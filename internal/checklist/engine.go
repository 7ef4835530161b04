// Package checklist evaluates payer criteria against validated facts,
// abstaining whenever the evidence is insufficient.
package checklist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/patrace/patrace/internal/model"
)

// MalformedCriterionError is a configuration defect in the criteria set:
// an unknown field reference, an uncompilable predicate, or a non-boolean
// predicate. It is fatal at load time, before any evidence is processed —
// silently skipping a criterion would be worse than refusing to run.
type MalformedCriterionError struct {
	CriterionID string
	Reason      string
}

func (e *MalformedCriterionError) Error() string {
	return fmt.Sprintf("malformed criterion %q: %s", e.CriterionID, e.Reason)
}

// Engine evaluates an ordered criteria set. Predicates are CEL expressions
// over the field vocabulary, compiled once at construction and cached per
// criterion id. The engine itself is stateless after construction and safe
// for concurrent use.
type Engine struct {
	rules    []model.CriterionRule
	compiled map[string]compiledRule
}

// compiledRule pairs a compiled predicate with the vocabulary fields it
// reads, taken from the checked expression's reference map. The field
// list drives evidence citation: only consumed fields can be cited.
type compiledRule struct {
	prog   cel.Program
	fields []model.FieldName
}

// NewEngine compiles every criterion predicate up front. Any malformed
// criterion fails construction with its id in the error.
func NewEngine(rules []model.CriterionRule) (*Engine, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("criteria set is empty")
	}

	env, err := newFieldEnv()
	if err != nil {
		return nil, fmt.Errorf("create predicate environment: %w", err)
	}

	en := &Engine{
		rules:    rules,
		compiled: make(map[string]compiledRule, len(rules)),
	}

	seen := make(map[string]bool)
	for _, rule := range rules {
		if rule.ID == "" {
			return nil, &MalformedCriterionError{CriterionID: "(unset)", Reason: "missing id"}
		}
		if seen[rule.ID] {
			return nil, &MalformedCriterionError{CriterionID: rule.ID, Reason: "duplicate id"}
		}
		seen[rule.ID] = true

		if rule.MinEvidence < 0 {
			return nil, &MalformedCriterionError{CriterionID: rule.ID, Reason: "min_evidence must not be negative"}
		}
		// A criterion with nothing required could never abstain, so it
		// would guess on empty evidence. Configuration defect.
		if len(rule.RequiredFields) == 0 {
			return nil, &MalformedCriterionError{CriterionID: rule.ID, Reason: "no required fields"}
		}
		for _, f := range rule.RequiredFields {
			if !model.IsKnownField(f) {
				return nil, &MalformedCriterionError{CriterionID: rule.ID, Reason: fmt.Sprintf("unknown required field %q", f)}
			}
		}

		cr, err := compilePredicate(env, rule)
		if err != nil {
			return nil, err
		}
		en.compiled[rule.ID] = cr
	}

	return en, nil
}

// newFieldEnv declares the field vocabulary as typed CEL variables, so a
// predicate referencing anything else is rejected at compile time.
func newFieldEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(string(model.FieldSymptomsDurationWeeks), cel.IntType),
		cel.Variable(string(model.FieldConservativeCareWeeks), cel.IntType),
		cel.Variable(string(model.FieldTreatments), cel.ListType(cel.StringType)),
		cel.Variable(string(model.FieldRedFlags), cel.ListType(cel.StringType)),
		cel.Variable(string(model.FieldRedFlagsPresent), cel.BoolType),
	)
}

func compilePredicate(env *cel.Env, rule model.CriterionRule) (compiledRule, error) {
	if strings.TrimSpace(rule.Predicate) == "" {
		return compiledRule{}, &MalformedCriterionError{CriterionID: rule.ID, Reason: "empty predicate"}
	}

	ast, issues := env.Compile(rule.Predicate)
	if issues != nil && issues.Err() != nil {
		return compiledRule{}, &MalformedCriterionError{CriterionID: rule.ID, Reason: fmt.Sprintf("predicate: %v", issues.Err())}
	}
	if ast.OutputType().String() != "bool" {
		return compiledRule{}, &MalformedCriterionError{CriterionID: rule.ID, Reason: fmt.Sprintf("predicate yields %s, want bool", ast.OutputType())}
	}

	// Cost limit guards against runaway expressions in criteria files.
	prog, err := env.Program(ast, cel.CostLimit(1_000_000))
	if err != nil {
		return compiledRule{}, &MalformedCriterionError{CriterionID: rule.ID, Reason: fmt.Sprintf("program: %v", err)}
	}
	return compiledRule{prog: prog, fields: referencedFields(ast)}, nil
}

// referencedFields lists the vocabulary fields a checked predicate reads.
// The derived red_flags_present variable is backed by red_flags facts, so
// it folds into that field.
func referencedFields(ast *cel.Ast) []model.FieldName {
	seen := make(map[model.FieldName]bool)
	for _, ref := range ast.NativeRep().ReferenceMap() {
		f := model.FieldName(ref.Name)
		if f == model.FieldRedFlagsPresent {
			f = model.FieldRedFlags
		}
		if model.IsKnownField(f) {
			seen[f] = true
		}
	}
	fields := make([]model.FieldName, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Rules returns the criteria set in evaluation order
func (en *Engine) Rules() []model.CriterionRule {
	return en.rules
}

// Evaluate runs each criterion independently against the validated facts
// and aggregates an overall status. Rules never see each other's results.
func (en *Engine) Evaluate(facts model.ValidatedFactSet) model.ChecklistVerdict {
	results := make([]model.CriterionResult, 0, len(en.rules))
	missing := make(map[string]bool)

	for _, rule := range en.rules {
		res := en.evaluateOne(rule, facts)
		if res.Status == model.StatusUnknown {
			for _, f := range missingFields(rule, facts) {
				missing[string(f)] = true
			}
		}
		results = append(results, res)
	}

	verdict := model.ChecklistVerdict{
		Criteria: results,
		Overall:  model.AggregateStatus(results),
	}
	for f := range missing {
		verdict.Missing = append(verdict.Missing, f)
	}
	sort.Strings(verdict.Missing)
	return verdict
}

// evaluateOne applies the abstention policy before touching the predicate:
// any absent or low-confidence-only required field, or an unsatisfied
// minimum-evidence requirement, yields UNKNOWN without guessing.
func (en *Engine) evaluateOne(rule model.CriterionRule, facts model.ValidatedFactSet) model.CriterionResult {
	res := model.CriterionResult{CriterionID: rule.ID, Label: rule.Label}

	var absent, lowOnly []string
	supporting := make([]model.ExtractedFact, 0, 4)
	for _, field := range rule.RequiredFields {
		switch {
		case !facts.Has(field):
			absent = append(absent, string(field))
		case !facts.HasHigh(field):
			lowOnly = append(lowOnly, string(field))
		default:
			supporting = append(supporting, highFacts(facts, field)...)
		}
	}

	if len(absent) > 0 || len(lowOnly) > 0 {
		res.Status = model.StatusUnknown
		res.Rationale = abstainRationale(absent, lowOnly)
		return res
	}

	if rule.MinEvidence > 0 && len(supporting) < rule.MinEvidence {
		res.Status = model.StatusUnknown
		res.Rationale = fmt.Sprintf("insufficient evidence: %d supporting fact(s), %d required", len(supporting), rule.MinEvidence)
		return res
	}

	ok, err := en.runPredicate(rule.ID, facts)
	if err != nil {
		// Runtime evaluation failure is treated as insufficient evidence,
		// never as a best guess.
		res.Status = model.StatusUnknown
		res.Rationale = fmt.Sprintf("predicate evaluation failed: %v", err)
		return res
	}

	if ok {
		res.Status = model.StatusMet
		res.Rationale = fmt.Sprintf("predicate %q satisfied", rule.Predicate)
	} else {
		res.Status = model.StatusNotMet
		res.Rationale = fmt.Sprintf("predicate %q evaluated false against the extracted evidence", rule.Predicate)
	}
	res.Evidence = en.citedFacts(rule.ID, facts, ok)
	return res
}

// citedFacts assembles the evidence trail for a decided criterion: the
// high-confidence facts of the fields its predicate read. For a satisfied
// predicate, a field is cited only when resetting it to its neutral value
// would flip the result to false, so a fact whose value argued against
// the outcome is never cited. When no single field is decisive the
// outcome is over-determined and every consumed field with facts is cited.
func (en *Engine) citedFacts(ruleID string, facts model.ValidatedFactSet, met bool) []model.ExtractedFact {
	cr := en.compiled[ruleID]
	act := activation(facts)

	var cited, consumed []model.ExtractedFact
	for _, field := range cr.fields {
		fs := highFacts(facts, field)
		if len(fs) == 0 {
			continue
		}
		consumed = append(consumed, fs...)
		if met && !flipsWhenNeutral(cr.prog, act, field) {
			continue
		}
		cited = append(cited, fs...)
	}
	if met && len(cited) == 0 {
		return consumed
	}
	return cited
}

// flipsWhenNeutral re-evaluates a satisfied predicate with one field
// reset to its neutral value. A flip to false means that field's facts
// decided the outcome.
func flipsWhenNeutral(prog cel.Program, act map[string]any, field model.FieldName) bool {
	neutral := make(map[string]any, len(act))
	for k, v := range act {
		neutral[k] = v
	}
	switch field {
	case model.FieldTreatments:
		neutral[string(field)] = []string{}
	case model.FieldRedFlags:
		neutral[string(field)] = []string{}
		neutral[string(model.FieldRedFlagsPresent)] = false
	default:
		neutral[string(field)] = int64(0)
	}

	out, _, err := prog.Eval(neutral)
	if err != nil {
		return true
	}
	b, ok := out.Value().(bool)
	return !ok || !b
}

// runPredicate evaluates the compiled predicate against an activation
// built from high-confidence facts. Fields the rule does not require
// default to neutral values (0, empty list, false): requiredness, not
// the predicate, decides when absence forces abstention.
func (en *Engine) runPredicate(ruleID string, facts model.ValidatedFactSet) (bool, error) {
	prog := en.compiled[ruleID].prog

	out, _, err := prog.Eval(activation(facts))
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("predicate yielded %T, want bool", out.Value())
	}
	return b, nil
}

// activation binds the full field vocabulary. Only high-confidence facts
// feed predicate inputs; low-confidence facts stay in the audit trail.
func activation(facts model.ValidatedFactSet) map[string]any {
	high := make(model.ValidatedFactSet)
	for _, fs := range facts {
		for _, f := range fs {
			if f.Confidence == model.ConfidenceHigh {
				high.Add(f)
			}
		}
	}

	symptoms, _ := high.IntValue(model.FieldSymptomsDurationWeeks)
	care, _ := high.IntValue(model.FieldConservativeCareWeeks)
	redFlags := high.ListValues(model.FieldRedFlags)

	return map[string]any{
		string(model.FieldSymptomsDurationWeeks): symptoms,
		string(model.FieldConservativeCareWeeks): care,
		string(model.FieldTreatments):            high.ListValues(model.FieldTreatments),
		string(model.FieldRedFlags):              redFlags,
		string(model.FieldRedFlagsPresent):       len(redFlags) > 0,
	}
}

func highFacts(facts model.ValidatedFactSet, field model.FieldName) []model.ExtractedFact {
	var out []model.ExtractedFact
	for _, f := range facts[field] {
		if f.Confidence == model.ConfidenceHigh {
			out = append(out, f)
		}
	}
	return out
}

func missingFields(rule model.CriterionRule, facts model.ValidatedFactSet) []model.FieldName {
	var out []model.FieldName
	for _, f := range rule.RequiredFields {
		if !facts.HasHigh(f) {
			out = append(out, f)
		}
	}
	return out
}

func abstainRationale(absent, lowOnly []string) string {
	var parts []string
	if len(absent) > 0 {
		parts = append(parts, fmt.Sprintf("no validated evidence for %s", strings.Join(absent, ", ")))
	}
	if len(lowOnly) > 0 {
		parts = append(parts, fmt.Sprintf("only low-confidence evidence for %s", strings.Join(lowOnly, ", ")))
	}
	return "abstained: " + strings.Join(parts, "; ")
}
