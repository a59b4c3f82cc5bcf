package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldPageID    = "page_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"

	// Enrichment fields
	FieldCompany = "company"
	FieldWebsite = "website"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
