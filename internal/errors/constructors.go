package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *BuildError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *BuildError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration file invalid").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *BuildError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Build pipeline errors

// EnumerationFailed is non-fatal: the build continues with whatever routes were collected.
func EnumerationFailed(dir string, cause error) *BuildError {
	return Wrap(cause, CategoryEnumeration, SeverityWarning, "post enumeration failed").
		WithContext("dir", dir)
}

func RenderFailed(route string, cause error) *BuildError {
	return Wrap(cause, CategoryRender, SeverityFatal, "page render failed").
		WithContext("route", route)
}

func OutputError(operation string, cause error) *BuildError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "output operation failed").
		WithContext("operation", operation)
}

// External systems

func EventStoreFailed(operation string, cause error) *BuildError {
	return Wrap(cause, CategoryEvents, SeverityError, "event store operation failed").
		WithContext("operation", operation)
}

func PublishFailed(subject string, cause error) *BuildError {
	return WrapRetryable(cause, CategoryNetwork, SeverityWarning, "event publish failed").
		WithContext("subject", subject)
}

// Runtime

func ServerFailed(cause error) *BuildError {
	return Wrap(cause, CategoryRuntime, SeverityFatal, "preview server failed")
}
