package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldID          = "id"
	FieldMonth       = "month"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldEventKind   = "event_kind"
	FieldPath        = "path"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentStorage = "storage"
	ComponentLedger  = "ledger"
	ComponentReports = "reports"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpDelete   = "delete"
	OpToggle   = "toggle"
	OpSave     = "save"
	OpExport   = "export"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNoData        = "no_data"
	ErrorTypeInternal      = "internal_error"
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

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds error type field
func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithMonth adds month field
func (f LogFields) WithMonth(month string) LogFields {
	f[FieldMonth] = month
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(id int64, amountCents int64, category string) LogFields {
	f[FieldID] = id
	f[FieldAmountCents] = amountCents
	f[FieldCategory] = category
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
