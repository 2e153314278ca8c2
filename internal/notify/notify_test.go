// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package notify_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/notify"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func TestNop(t *testing.T) {
	var n notify.Notifier = notify.Nop{}
	require.NoError(t, n.Publish(context.Background(), notify.Event{Type: notify.EventGateCreated}))
	require.NoError(t, n.Close())
}

func TestEvent_JSONShape(t *testing.T) {
	ev := notify.Event{
		Type:     notify.EventGateResolved,
		GateID:   "g1",
		RunID:    "r1",
		Decision: "approved",
		At:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "gate.resolved", m["type"])
	assert.Equal(t, "g1", m["gate_id"])
	assert.NotContains(t, m, "decided_by")
}

func TestNewAMQPPublisher_EmptyURL(t *testing.T) {
	_, err := notify.NewAMQPPublisher(notify.AMQPConfig{})
	require.Error(t, err)
	assert.Equal(t, syerr.CodeNotifyConnectFailure, syerr.CodeOf(err))
}

func TestAMQPPublisher_Publish(t *testing.T) {
	url := os.Getenv("SWITCHYARD_TEST_AMQP_URL")
	if url == "" {
		t.Skip("SWITCHYARD_TEST_AMQP_URL not set")
	}
	p, err := notify.NewAMQPPublisher(notify.AMQPConfig{URL: url, Exchange: "switchyard.test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.NoError(t, p.Publish(context.Background(), notify.Event{Type: notify.EventGateCreated, GateID: "g1"}))
	require.NoError(t, p.Close())
	assert.Error(t, p.Publish(context.Background(), notify.Event{Type: notify.EventGateCreated}))
}
