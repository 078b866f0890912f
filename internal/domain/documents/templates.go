package documents

// TemplateField describes one input in a document form schema.
type TemplateField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"` // text, textarea, number, date, select
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// FormTemplate is the static form schema for one document type.
type FormTemplate struct {
	Type          Type            `json:"type"`
	Title         string          `json:"title"`
	RetentionDays int             `json:"retention_days"`
	Fields        []TemplateField `json:"fields"`
}

// Templates returns the static form-schema catalogue. The catalogue is fixed
// at build time; there is no template state to manage.
func Templates() []FormTemplate {
	return []FormTemplate{
		{
			Type:          TypePrescription,
			Title:         "Prescription",
			RetentionDays: RetentionDays(TypePrescription),
			Fields: []TemplateField{
				{Name: "medication", Label: "Medication", Kind: "text", Required: true},
				{Name: "dosage", Label: "Dosage", Kind: "text", Required: true},
				{Name: "frequency", Label: "Frequency", Kind: "select", Required: true,
					Options: []string{"once daily", "twice daily", "three times daily", "as needed"}},
				{Name: "duration_days", Label: "Duration (days)", Kind: "number", Required: true},
				{Name: "instructions", Label: "Instructions", Kind: "textarea"},
			},
		},
		{
			Type:          TypeMedicalReport,
			Title:         "Medical Report",
			RetentionDays: RetentionDays(TypeMedicalReport),
			Fields: []TemplateField{
				{Name: "diagnosis", Label: "Diagnosis", Kind: "text", Required: true},
				{Name: "findings", Label: "Findings", Kind: "textarea", Required: true},
				{Name: "recommendations", Label: "Recommendations", Kind: "textarea"},
			},
		},
		{
			Type:          TypeLabOrders,
			Title:         "Lab Orders",
			RetentionDays: RetentionDays(TypeLabOrders),
			Fields: []TemplateField{
				{Name: "tests", Label: "Ordered Tests", Kind: "textarea", Required: true},
				{Name: "urgency", Label: "Urgency", Kind: "select", Required: true,
					Options: []string{"routine", "urgent", "stat"}},
				{Name: "fasting_required", Label: "Fasting Required", Kind: "select",
					Options: []string{"yes", "no"}},
			},
		},
		{
			Type:          TypeTestResults,
			Title:         "Test Results",
			RetentionDays: RetentionDays(TypeTestResults),
			Fields: []TemplateField{
				{Name: "test_name", Label: "Test Name", Kind: "text", Required: true},
				{Name: "result", Label: "Result", Kind: "textarea", Required: true},
				{Name: "reference_range", Label: "Reference Range", Kind: "text"},
				{Name: "collected_at", Label: "Collection Date", Kind: "date"},
			},
		},
		{
			Type:          TypeFollowUpInstructions,
			Title:         "Follow-up Instructions",
			RetentionDays: RetentionDays(TypeFollowUpInstructions),
			Fields: []TemplateField{
				{Name: "instructions", Label: "Instructions", Kind: "textarea", Required: true},
				{Name: "follow_up_date", Label: "Follow-up Date", Kind: "date"},
			},
		},
		{
			Type:          TypeMedicationPlan,
			Title:         "Medication Plan",
			RetentionDays: RetentionDays(TypeMedicationPlan),
			Fields: []TemplateField{
				{Name: "medications", Label: "Medications", Kind: "textarea", Required: true},
				{Name: "review_date", Label: "Review Date", Kind: "date"},
			},
		},
		{
			Type:          TypeSickNote,
			Title:         "Sick Note",
			RetentionDays: RetentionDays(TypeSickNote),
			Fields: []TemplateField{
				{Name: "reason", Label: "Reason", Kind: "text", Required: true},
				{Name: "from_date", Label: "From", Kind: "date", Required: true},
				{Name: "to_date", Label: "To", Kind: "date", Required: true},
			},
		},
		{
			Type:          TypeVisitSummary,
			Title:         "Visit Summary",
			RetentionDays: RetentionDays(TypeVisitSummary),
			Fields: []TemplateField{
				{Name: "visit_date", Label: "Visit Date", Kind: "date", Required: true},
				{Name: "summary", Label: "Summary", Kind: "textarea", Required: true},
				{Name: "next_steps", Label: "Next Steps", Kind: "textarea"},
			},
		},
	}
}
