package kafka

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	err       error
	i         int
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	return kafka.Message{}, errors.New("eof")
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_Consume_CallsHandlerAndCommits(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{{Key: []byte("snapshot"), Value: []byte("v")}},
		err:  errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	var gotK, gotV []byte
	err := c.Consume(context.Background(), func(k, v []byte) error {
		gotK, gotV = k, v
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch message")
	require.Equal(t, []byte("snapshot"), gotK)
	require.Equal(t, []byte("v"), gotV)
	require.Len(t, fr.committed, 1)
}

func TestConsumer_Consume_HandlerErrorStopsWithoutCommit(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Key: []byte("k"), Value: []byte("v")}}}
	c := newConsumerWithReader(fr)

	want := errors.New("handler failed")
	err := c.Consume(context.Background(), func(k, v []byte) error { return want })
	require.ErrorIs(t, err, want)
	require.Empty(t, fr.committed)
}

func TestConsumer_Consume_SkipCommitsAndContinues(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{{Value: []byte("garbage")}, {Value: []byte("ok")}},
		err:  errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	var seen []string
	err := c.Consume(context.Background(), func(k, v []byte) error {
		seen = append(seen, string(v))
		if string(v) == "garbage" {
			return pkgerrors.Wrap(ErrSkipMessage, "decode")
		}
		return nil
	})
	require.Error(t, err)
	require.Equal(t, []string{"garbage", "ok"}, seen)
	require.Len(t, fr.committed, 2)
}

func TestConsumer_Consume_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newConsumerWithReader(&fakeReader{})

	err := c.Consume(ctx, func(k, v []byte) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewConsumer_Close(t *testing.T) {
	c := NewConsumer([]string{"localhost:0"}, "alerts.scanned", "watch-api")
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}
