package ws

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDroppedLabelledByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusMetrics(reg, "")
	require.NoError(t, err)

	gw, ft := newTestGateway(t, WithMetrics(metrics))
	require.NoError(t, gw.Register("chat/:roomId", &Handler{
		OnOpen: func(ctx context.Context, c *Conn) error {
			c.Subscribe("chat:" + c.Param("roomId"))
			return nil
		},
	}))
	events := recordEvents(gw, nil)

	for _, room := range []string{"1", "2", "3"} {
		sock, _ := upgrade(t, gw, ft, "/chat/"+room, nil)
		require.NotNil(t, sock)
		events.next(t, EventOpen)
		sock.setCapacity(0)
		assert.Equal(t, 0, gw.Publish("chat:"+room, []byte("hi"), false))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.publishDropped))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.publishDropped.WithLabelValues("chat/:roomId")))
}
