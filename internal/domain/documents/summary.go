package documents

import (
	"fmt"
	"sort"
	"strings"
)

// summaryTemplates maps each document type to a fixed sentence template.
// Placeholders in {{key}} form are filled from the submitted content; this is
// a lookup table, not a model call.
var summaryTemplates = map[Type]string{
	TypePrescription:         "Prescribed {{medication}} {{dosage}}, {{frequency}}, for {{duration_days}} days. {{instructions}}",
	TypeMedicalReport:        "Diagnosis: {{diagnosis}}. Findings: {{findings}}. Recommendations: {{recommendations}}",
	TypeLabOrders:            "Ordered lab tests ({{urgency}}): {{tests}}.",
	TypeTestResults:          "{{test_name}} result: {{result}} (reference range {{reference_range}}).",
	TypeFollowUpInstructions: "Follow-up instructions: {{instructions}} Next visit: {{follow_up_date}}.",
	TypeMedicationPlan:       "Medication plan: {{medications}} Review on {{review_date}}.",
	TypeSickNote:             "Unfit for work from {{from_date}} to {{to_date}} due to {{reason}}.",
	TypeVisitSummary:         "Visit on {{visit_date}}: {{summary}} Next steps: {{next_steps}}",
}

// Summarize renders the per-type summary template with the supplied content
// values. Placeholders with no matching key are removed; for an unknown type
// a generic field listing is produced.
func Summarize(t Type, content map[string]string) string {
	tpl, ok := summaryTemplates[t]
	if !ok {
		return genericSummary(content)
	}

	out := tpl
	for k, v := range content {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	// Drop any placeholder the caller did not fill.
	for {
		start := strings.Index(out, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(out[start:], "}}")
		if end < 0 {
			break
		}
		out = out[:start] + out[start+end+2:]
	}
	return strings.Join(strings.Fields(out), " ")
}

func genericSummary(content map[string]string) string {
	if len(content) == 0 {
		return "Document issued."
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), content[k]))
	}
	return strings.Join(parts, "; ") + "."
}
