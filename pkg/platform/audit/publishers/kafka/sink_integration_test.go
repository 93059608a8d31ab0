//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "propmaster/pkg/platform/audit"
	"propmaster/pkg/platform/audit/publishers/kafka"
	"propmaster/pkg/testutil/containers"
)

func TestSink_ProducesEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	broker := containers.NewRedpandaContainer(t)

	sink, err := kafka.NewSink([]string{broker.Broker}, "session-audit")
	require.NoError(t, err)
	defer sink.Close()
	require.NoError(t, sink.EnsureTopic(ctx, 1, 1))
	require.NoError(t, sink.EnsureTopic(ctx, 1, 1), "second ensure must tolerate an existing topic")

	require.NoError(t, sink.Append(ctx, audit.Event{SubjectID: "u1", Action: string(audit.EventSessionReset)}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics("session-audit"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.NotEmpty(t, records)
	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, "u1", string(got.SubjectID))
	require.Equal(t, string(audit.EventSessionReset), got.Action)
}
