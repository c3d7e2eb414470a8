package config

const (
	// TopicIngestTask is the NSQ topic for document ingestion tasks,
	// published by the upload-completion webhook.
	TopicIngestTask = "ingest.task"

	// ChannelIngest is the consumer channel for the in-process ingest worker.
	ChannelIngest = "ingest-worker"
)
