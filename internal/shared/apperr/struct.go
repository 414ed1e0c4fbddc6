package apperr

type Kind string

type AppError struct {
	Kind      Kind
	PublicMsg string            // safe to show to the caller
	Fields    map[string]string // per-field validation errors (optional)
	Err       error             // internal error (log only)
}
