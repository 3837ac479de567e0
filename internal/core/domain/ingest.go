package domain

// TriggerResponse is the success body of the ingestion endpoint.
type TriggerResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// ErrorResponse is the best-effort failure body of the backend.
type ErrorResponse struct {
	Message string `json:"message"`
}
