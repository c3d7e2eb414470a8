package ingest

// Task is the ingest.task payload published by the upload-completion
// webhook.
type Task struct {
	OwnerID       string `json:"owner_id"`
	PlanID        string `json:"plan_id"`
	StorageKey    string `json:"storage_key"`
	Name          string `json:"name"`
	SourceURL     string `json:"source_url"`
	CorrelationID string `json:"correlation_id"`
}
