package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldSource             = "source"
	FieldRunID              = "run_id"
	FieldRowsIn             = "rows_in"
	FieldRowsKept           = "rows_kept"
	FieldInvalidDate        = "invalid_date"
	FieldUnresolvedDuration = "unresolved_duration"
	FieldZeroAmount         = "zero_amount"
	FieldLedgerRows         = "ledger_rows"
	FieldCohorts            = "cohorts"
	FieldOutputDir          = "output_dir"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentAnalysis = "analytics"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentSource   = "source"
	ComponentCache    = "cache"
	ComponentBackend  = "backend"
	ComponentExporter = "exporter"
)

// Operations defines standard operation names
const (
	OpLoad     = "load"
	OpProcess  = "process"
	OpRefresh  = "refresh"
	OpExport   = "export"
	OpImport   = "import"
	OpFetch    = "fetch"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRun adds the row accounting of one processing run.
func (f LogFields) WithRun(rowsIn, invalidDate, unresolved, zeroAmount, kept, ledgerRows int) LogFields {
	f[FieldRowsIn] = rowsIn
	f[FieldInvalidDate] = invalidDate
	f[FieldUnresolvedDuration] = unresolved
	f[FieldZeroAmount] = zeroAmount
	f[FieldRowsKept] = kept
	f[FieldLedgerRows] = ledgerRows
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
