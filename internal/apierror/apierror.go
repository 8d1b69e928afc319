// Package apierror is the JSON error envelope of every 4xx/5xx response.
// Handlers never write raw error strings from the database or the runtime.
package apierror

// APIError is the body of a failed request.
type APIError struct {
	Detail string `json:"detail"`
}

func New(detail string) *APIError {
	return &APIError{Detail: detail}
}

func (e *APIError) Error() string { return e.Detail }

// ValidationError is returned with 422; Fields maps struct field to the
// validator tag that failed.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
