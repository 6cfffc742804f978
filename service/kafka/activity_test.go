package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishEncodesEvent(t *testing.T) {
	prod := mocks.NewSyncProducer(t, nil)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	prod.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Kind != KindProjectGraded || ev.Target != "s1" || !ev.At.Equal(at) {
			return errors.New("unexpected event")
		}
		return nil
	})

	p := NewPublisher(prod, "")
	require.NoError(t, p.Publish(context.Background(), Event{
		Kind: KindProjectGraded, Actor: "t1", Target: "s1", Ref: "p1", At: at,
	}))
	require.NoError(t, p.Close())
}

func TestPublishValidatesAndWrapsErrors(t *testing.T) {
	prod := mocks.NewSyncProducer(t, nil)
	p := NewPublisher(prod, "phub.activity")

	assert.Error(t, p.Publish(context.Background(), Event{Kind: KindMessageSent}))

	prod.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	err := p.Publish(context.Background(), Event{Kind: KindMessageSent, Target: "u2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestEmitAndPresenceHooks(t *testing.T) {
	prod := mocks.NewSyncProducer(t, nil)
	seen := make(chan string, 3)
	check := func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		seen <- ev.Kind
		return nil
	}
	prod.ExpectSendMessageWithCheckerFunctionAndSucceed(check)
	prod.ExpectSendMessageWithCheckerFunctionAndSucceed(check)
	prod.ExpectSendMessageWithCheckerFunctionAndSucceed(check)

	p := NewPublisher(prod, "")
	p.Online("u1")
	p.Offline("u1")
	p.Emit(KindNotification, "system", "u1", "n1")

	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case k := <-seen:
			got[k] = true
		case <-time.After(2 * time.Second):
			t.Fatal("emit timed out")
		}
	}
	assert.True(t, got[KindUserOnline])
	assert.True(t, got[KindUserOffline])
	assert.True(t, got[KindNotification])
	require.NoError(t, p.Close())
}

func TestNoopEmitter(t *testing.T) {
	var e Emitter = Noop{}
	e.Emit("x", "a", "b", "c")
}
