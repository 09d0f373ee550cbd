package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/convsynth/internal/model"
)

const (
	// StreamName is the name of the dialogue runs stream.
	StreamName = "DIALOGUES"

	// SubjectPrefix is the prefix for all dialogue subjects.
	SubjectPrefix = "dialogue"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the dialogues stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Completed dialogue generation runs",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// RunCompletedSubject returns the subject a finished run is published on.
func RunCompletedSubject(userID, sessionID string) string {
	return fmt.Sprintf("%s.%s.%s.run.completed", SubjectPrefix, subjectToken(userID), subjectToken(sessionID))
}

// RunFilter returns the filter subject for every completed run.
func RunFilter() string {
	return SubjectPrefix + ".*.*.run.completed"
}

// PublishRunCompleted publishes a run event and returns its stream sequence.
func (m *StreamManager) PublishRunCompleted(ctx context.Context, event *model.RunEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal run event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, RunCompletedSubject(event.UserID, event.SessionID), data,
		jetstream.WithMsgID(event.RunID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish run event: %w", err)
	}
	return ack.Sequence, nil
}

// GetRunEvents reads up to limit run events after a stream sequence. It
// returns the events, the last sequence read and whether more may follow.
func (m *StreamManager) GetRunEvents(ctx context.Context, afterSequence uint64, limit int) ([]model.RunEvent, uint64, bool, error) {
	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{RunFilter()},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = afterSequence + 1
	}

	consumer, err := m.client.JetStream().OrderedConsumer(ctx, StreamName, cfg)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch run events: %w", err)
	}

	var events []model.RunEvent
	var lastSequence uint64
	for msg := range batch.Messages() {
		var event model.RunEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			lastSequence = meta.Sequence.Stream
		}
		events = append(events, event)
	}
	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, 0, false, fmt.Errorf("batch error: %w", err)
	}

	return events, lastSequence, len(events) == limit, nil
}

// subjectToken makes s safe to use as one subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, s)
}
