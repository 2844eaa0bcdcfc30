package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const transcriptPrefix = "transcripts/"

// SaveTranscript writes the current conversation, notifications and assignments to storage
func SaveTranscript(ctx context.Context, storage adapter.Storage, clientID model.ClientID, state *State) (*model.Transcript, error) {
	transcript := &model.Transcript{
		ID:            model.NewTranscriptID(),
		ClientID:      clientID,
		CreatedAt:     time.Now(),
		Messages:      state.Messages(),
		Notifications: state.Notifications(),
		Assignments:   state.Assignments(),
	}

	writer, err := storage.Put(ctx, transcript.Key())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage writer")
	}
	defer writer.Close()

	data, err := json.Marshal(transcript)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal transcript")
	}

	if _, err := writer.Write(data); err != nil {
		return nil, goerr.Wrap(err, "failed to write transcript to storage")
	}

	if err := writer.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to close storage writer")
	}

	return transcript, nil
}

// LoadTranscript reads a saved transcript from storage
func LoadTranscript(ctx context.Context, storage adapter.Storage, id model.TranscriptID) (*model.Transcript, error) {
	key := (&model.Transcript{ID: id}).Key()
	reader, err := storage.Get(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get transcript from storage", goerr.V("id", id))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read transcript data", goerr.V("id", id))
	}

	var transcript model.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal transcript", goerr.V("id", id))
	}
	return &transcript, nil
}

// ListTranscripts returns saved transcripts, newest first, skipping offset entries
// and returning at most limit of them. limit <= 0 means no limit.
func ListTranscripts(ctx context.Context, storage adapter.Storage, offset, limit int) ([]*model.Transcript, error) {
	keys, err := storage.List(ctx, transcriptPrefix)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list transcripts")
	}

	transcripts := make([]*model.Transcript, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		id := model.TranscriptID(strings.TrimSuffix(strings.TrimPrefix(key, transcriptPrefix), ".json"))
		t, err := LoadTranscript(ctx, storage, id)
		if err != nil {
			return nil, err
		}
		transcripts = append(transcripts, t)
	}

	slices.SortStableFunc(transcripts, func(a, b *model.Transcript) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if offset >= len(transcripts) {
		return []*model.Transcript{}, nil
	}
	transcripts = transcripts[max(offset, 0):]
	if limit > 0 && limit < len(transcripts) {
		transcripts = transcripts[:limit]
	}
	return transcripts, nil
}
