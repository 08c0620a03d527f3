package domain

import "time"

// Artifact is the output of one content-pipeline run: the extracted metadata,
// the summary, and the files produced for upload. For transcript-only runs
// (video sources) VideoFile is empty.
type Artifact struct {
	// Title of the article or video.
	Title string
	// Author as extracted from the source, may be empty.
	Author string
	// PublishDate as extracted from the source, may be empty.
	PublishDate string

	// SummaryText is the short summary posted to the channel.
	SummaryText string

	// VideoFile is the path of the narrated video container, if one was
	// rendered.
	VideoFile string
	// TranscriptFile is the path of the full text written to disk.
	TranscriptFile string

	// Duration is the length of the narration, zero when no video was
	// rendered.
	Duration time.Duration
}
