package worker

import "github.com/book-expert/events"

// PodcastRequestedEvent asks the worker to turn a stored document into a podcast.
type PodcastRequestedEvent struct {
	Header      events.EventHeader `json:"header"`
	DocumentKey string             `json:"document_key"`
	Filename    string             `json:"filename"`
	Language    string             `json:"language"`
}

// PodcastCreatedEvent is the reply once the podcast is in the audio bucket.
type PodcastCreatedEvent struct {
	Header          events.EventHeader `json:"header"`
	AudioKey        string             `json:"audio_key"`
	Title           string             `json:"title"`
	DurationSeconds float64            `json:"duration_seconds"`
	TurnsTotal      int                `json:"turns_total"`
	TurnsDropped    int                `json:"turns_dropped"`
}

// PodcastFailedEvent is the reply when a valid request could not be completed.
type PodcastFailedEvent struct {
	Header events.EventHeader `json:"header"`
	Error  string             `json:"error"`
}
