package handler

const (
	errInternalServer = "Internal server error"
	errJobNotFound    = "Job not found"
	errValidation     = "Validation error"
	errStateConflict  = "Job cannot transition from its current state"
)
