package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"token_vote/internal/domain"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisherWithWriter(w, "votes")

	rec := domain.VoteRecorded{
		AttemptID:   "a-1",
		Signature:   "sig",
		Voter:       "voter",
		Contract:    "contract",
		TallyAfter:  7,
		ConfirmedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), rec))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "contract", string(msg.Key))
	require.Equal(t, "attempt_id", msg.Headers[0].Key)
	require.Equal(t, "a-1", string(msg.Headers[0].Value))

	var got domain.VoteRecorded
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	require.Equal(t, rec, got)

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestKafkaPublisher_WriteFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker unreachable")}
	p := NewKafkaPublisherWithWriter(w, "votes")

	err := p.Publish(context.Background(), domain.VoteRecorded{Contract: "c"})
	require.Error(t, err)
	require.True(t, domain.IsRetriable(err))
}

func TestRespond_NeverBlocks(t *testing.T) {
	ev := NewVote()
	Respond(ev.Reply, Reply{Err: domain.ErrAlreadyVoted})
	Respond(ev.Reply, Reply{})
	Respond(nil, Reply{})

	r := <-ev.Reply
	require.ErrorIs(t, r.Err, domain.ErrAlreadyVoted)
}
