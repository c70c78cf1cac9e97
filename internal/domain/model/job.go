package model

// SchemaVersion is the ingest payload schema version the service
// currently accepts. Jobs carrying any other version are rejected
// before they reach the store.
const SchemaVersion = 1

// IngestJob is one queued asynchronous submission: a full batch bound
// for a single (weekKey, category), plus the optimistic-concurrency
// base and a producer-supplied id for duplicate suppression.
type IngestJob struct {
	JobID         string   `json:"job_id"`
	Key           WeekKey  `json:"key"`
	Category      Category `json:"category"`
	BaseSeq       uint64   `json:"base_seq"`
	SchemaVersion int      `json:"schema_version"`
	Batch         Batch    `json:"batch"`
}
