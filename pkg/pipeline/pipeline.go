// Package pipeline turns one URL into a posted artifact: fetch, extract,
// summarize, narrate, render. Stages run strictly in sequence and the first
// failure aborts the run with a stage-tagged error.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"paperboy/pkg/domain"
	"paperboy/pkg/logger"
	"paperboy/pkg/pipeline/extract"
	"paperboy/pkg/pipeline/fetch"
	"paperboy/pkg/pipeline/summarize"
	"paperboy/pkg/pipeline/youtube"
	"paperboy/pkg/serrors"
	"paperboy/pkg/textproc"
)

// Renderer is the single capability the routing core consumes: render a URL
// into an artifact, honoring the per-domain bypass hint.
//
// Implementations report failures as *pipeline.Error so callers can surface
// the failing stage.
type Renderer interface {
	Render(ctx context.Context, rawURL string, bypass bool) (*domain.Artifact, error)
}

// Synthesizer narrates text chunks into one audio file and reports the
// narration length.
type Synthesizer interface {
	Synthesize(ctx context.Context, chunks []string, outPath string) (time.Duration, error)
}

// Muxer renders an audio file into a video container.
type Muxer interface {
	Mux(ctx context.Context, audioPath, outPath string) error
}

// Transcriber resolves metadata and transcript for video URLs.
type Transcriber interface {
	Resolve(ctx context.Context, rawURL string) (*youtube.Video, error)
}

// Options configure the pipeline.
type Options struct {
	// ArticlesDir is where artifact files are written.
	ArticlesDir string
	// OnStage, when set, is invoked as each stage starts. Used by the front
	// end for progress reporting; it must not block.
	OnStage func(ctx context.Context, stage Stage)
}

// Pipeline is the production Renderer.
type Pipeline struct {
	fetcher     fetch.Fetcher
	summarizer  summarize.Summarizer
	synthesizer Synthesizer
	muxer       Muxer
	transcriber Transcriber
	opts        Options
}

// New assembles a Pipeline from its stage implementations.
func New(fetcher fetch.Fetcher,
	summarizer summarize.Summarizer,
	synthesizer Synthesizer,
	muxer Muxer,
	transcriber Transcriber,
	opts Options) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		summarizer:  summarizer,
		synthesizer: synthesizer,
		muxer:       muxer,
		transcriber: transcriber,
		opts:        opts,
	}
}

// Render implements Renderer. Video-host URLs take the transcript-only
// variant; everything else takes the full narrated-video path.
func (p *Pipeline) Render(ctx context.Context, rawURL string, bypass bool) (*domain.Artifact, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, StageFailed(StageFetch, serrors.Wrap(serrors.ErrBadRequest, err, "could not parse URL"))
	}

	if err := os.MkdirAll(p.opts.ArticlesDir, 0o750); err != nil {
		return nil, StageFailed(StageFetch, fmt.Errorf("could not create articles dir: %w", err))
	}

	if youtube.IsVideoHost(u.Host) {
		return p.renderVideo(ctx, rawURL)
	}

	return p.renderArticle(ctx, rawURL, bypass)
}

func (p *Pipeline) stage(ctx context.Context, s Stage) {
	logger.Debug(ctx, "pipeline stage", zap.String("stage", string(s)))
	if p.opts.OnStage != nil {
		p.opts.OnStage(ctx, s)
	}
	reportStage(ctx, s)
}

func (p *Pipeline) renderArticle(ctx context.Context, rawURL string, bypass bool) (*domain.Artifact, error) {
	p.stage(ctx, StageFetch)
	source, err := p.fetcher.Fetch(ctx, rawURL, bypass)
	if err != nil {
		return nil, StageFailed(StageFetch, err)
	}

	p.stage(ctx, StageExtract)
	article, err := extract.FromHTML(source)
	if err != nil {
		return nil, StageFailed(StageExtract, err)
	}

	p.stage(ctx, StageSummarize)
	summary, err := p.summarizer.Summarize(ctx, article.Text)
	if err != nil {
		return nil, StageFailed(StageSummarize, err)
	}

	base := filepath.Join(p.opts.ArticlesDir, slug.Make(article.Title))
	transcriptFile := base + ".txt"
	formatted := textproc.FormatArticle(article.Title, article.Author, article.PublishDate, article.Text)
	if err := os.WriteFile(transcriptFile, []byte(formatted), 0o600); err != nil {
		return nil, StageFailed(StageExtract, fmt.Errorf("could not write article file: %w", err))
	}

	p.stage(ctx, StageSpeech)
	audioFile := base + ".wav"
	duration, err := p.synthesizer.Synthesize(ctx, textproc.Chunk(article.Text, textproc.MaxChunk), audioFile)
	if err != nil {
		return nil, StageFailed(StageSpeech, err)
	}

	p.stage(ctx, StageVideo)
	videoFile := base + ".webm"
	if err := p.muxer.Mux(ctx, audioFile, videoFile); err != nil {
		return nil, StageFailed(StageVideo, err)
	}

	return &domain.Artifact{
		Title:          article.Title,
		Author:         article.Author,
		PublishDate:    article.PublishDate,
		SummaryText:    summary,
		VideoFile:      videoFile,
		TranscriptFile: transcriptFile,
		Duration:       duration,
	}, nil
}

// renderVideo summarizes a video transcript; no narration is rendered since
// the source already is one.
func (p *Pipeline) renderVideo(ctx context.Context, rawURL string) (*domain.Artifact, error) {
	p.stage(ctx, StageFetch)
	video, err := p.transcriber.Resolve(ctx, rawURL)
	if err != nil {
		return nil, StageFailed(StageFetch, err)
	}

	p.stage(ctx, StageSummarize)
	summary, err := p.summarizer.Summarize(ctx, video.Transcript)
	if err != nil {
		return nil, StageFailed(StageSummarize, err)
	}

	transcriptFile := filepath.Join(p.opts.ArticlesDir, video.ID+".txt")
	formatted := textproc.FormatArticle(video.Title, video.Author, "", video.Transcript)
	if err := os.WriteFile(transcriptFile, []byte(formatted), 0o600); err != nil {
		return nil, StageFailed(StageExtract, fmt.Errorf("could not write transcript file: %w", err))
	}

	return &domain.Artifact{
		Title:          video.Title,
		Author:         video.Author,
		SummaryText:    summary,
		TranscriptFile: transcriptFile,
	}, nil
}

// Ensure Pipeline conforms to Renderer at compile time.
var _ Renderer = (*Pipeline)(nil)
