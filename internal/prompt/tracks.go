package prompt

import (
	"fmt"
	"strings"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
)

// Artifacts maps modality to track id to uploaded handle.
type Artifacts map[llm.Modality]map[string]llm.Handle

// NewArtifacts builds an Artifacts value from per-modality upload results.
func NewArtifacts(audio, image map[string]llm.Handle) Artifacts {
	return Artifacts{llm.ModalityAudio: audio, llm.ModalityImage: image}
}

// For returns the handles of one track in audio, image order.
func (a Artifacts) For(trackID string) []llm.Handle {
	var out []llm.Handle
	for _, m := range []llm.Modality{llm.ModalityAudio, llm.ModalityImage} {
		if h, ok := a[m][trackID]; ok {
			out = append(out, h)
		}
	}
	return out
}

// TrackOptions control how a track is rendered.
type TrackOptions struct {
	IncludeID  bool
	LyricChars int
	MaxTags    int
}

// DefaultTrackOptions match what the persona prompts expect.
var DefaultTrackOptions = TrackOptions{LyricChars: 200}

// TrackText renders a track's metadata block.
func TrackText(t model.Track, opts TrackOptions) string {
	var b strings.Builder
	b.WriteString("### TRACK:\n")
	fmt.Fprintf(&b, "- Title: %s", t.Title)
	if opts.IncludeID {
		fmt.Fprintf(&b, " track_id: %s", t.TrackID)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Artist: %s\n", t.Artist)
	album := t.Album
	if album == "" {
		album = "Unknown"
	}
	fmt.Fprintf(&b, "- Album: %s\n", album)

	tags := t.Tags
	if opts.MaxTags > 0 && len(tags) > opts.MaxTags {
		tags = tags[:opts.MaxTags]
	}
	fmt.Fprintf(&b, "- Tags: %s", strings.Join(tags, ", "))

	if opts.LyricChars > 0 && t.Lyrics != "" {
		lyrics := []rune(t.Lyrics)
		ellipsis := ""
		if len(lyrics) > opts.LyricChars {
			lyrics = lyrics[:opts.LyricChars]
			ellipsis = "..."
		}
		fmt.Fprintf(&b, "\nLyrics: --- Begin of Lyrics ---\n%s%s--- End of Lyrics ---", string(lyrics), ellipsis)
	}
	b.WriteString("\n")
	return b.String()
}

// TrackParts renders tracks under a title, each followed by its artifact handles.
func TrackParts(title string, tracks model.Tracks, artifacts Artifacts, opts TrackOptions) []llm.Part {
	parts := []llm.Part{llm.TextPart(title)}
	for _, t := range tracks {
		parts = append(parts, llm.TextPart(TrackText(t, opts)))
		for _, h := range artifacts.For(t.TrackID) {
			parts = append(parts, llm.TextPart("- "+string(h.Modality)+": "), llm.HandlePart(h))
		}
	}
	return parts
}

// QuoteList renders examples as a bullet list of quoted strings.
func QuoteList(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = `- "` + it + `"`
	}
	return strings.Join(lines, "\n")
}

// IDList renders ids as a bracketed, comma separated list.
func IDList(ids []string) string {
	return "[" + strings.Join(ids, ", ") + "]"
}
