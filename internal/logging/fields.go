package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies log records for downstream filtering.
	FieldEventType = "event_type"
	// FieldAssetID is the standardized key for remote asset identifiers.
	FieldAssetID = "asset_id"
	// FieldSource is the standardized key for local source file paths.
	FieldSource = "source_file"
	// FieldErrorHint carries a short operator-facing remediation hint.
	FieldErrorHint = "error_hint"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)
