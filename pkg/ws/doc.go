// Package ws implements a WebSocket connection gateway.
//
// # Features
//
//   - Path routing with ":param" segments, first registered match wins
//   - Global, group, handler and route middleware with identity dedupe
//   - Per-connection lifecycle: open, message, drain, close
//   - Topic publish/subscribe with a conventional "broadcast" topic
//   - Durable send queue: sends that hit backpressure are persisted and
//     redelivered in order on drain
//   - Process-wide lifecycle event bus
//   - Prometheus metrics and OpenTelemetry spans per event
//
// # Basic Usage
//
//	gw, err := ws.New(
//	    ws.WithMaxConnections(10000),
//	    ws.WithAllowedOrigins("https://example.com"),
//	    ws.WithLogger(log),
//	)
//	if err != nil {
//	    log.Fatal("create gateway", zap.Error(err))
//	}
//
//	_ = gw.Register("chat/:roomId", &ws.Handler{
//	    OnOpen: func(ctx context.Context, c *ws.Conn) error {
//	        c.Subscribe("chat:" + c.Param("roomId"))
//	        return nil
//	    },
//	    OnMessage: func(ctx context.Context, c *ws.Conn, msg ws.Message) error {
//	        c.Publish("chat:"+c.Param("roomId"), msg.Data, false)
//	        return nil
//	    },
//	})
//
//	gw.Freeze()
//	http.Handle("/", gw)
//
// # Middleware
//
// A middleware returns nil to let the event through. Any error stops the
// chain: on open the connection is closed with 1008, on message the
// message is dropped and the connection stays open.
//
//	auth := ws.NewMiddleware("auth", func(ctx context.Context, ev *ws.Event) error {
//	    if ev.Conn.Header().Get("Authorization") == "" {
//	        return ws.Reject("missing token")
//	    }
//	    return nil
//	})
//	_ = gw.Use(auth)
//
// # Sending
//
// Conn.Send never blocks. When the transport buffer is full the payload is
// stored in the queue and the call returns queue.Queued; the next drain
// event flushes the queue oldest first. A broken connection is closed with
// 1011 and the payload is not stored.
//
// # Shutdown
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	_ = gw.Shutdown(ctx)
package ws
