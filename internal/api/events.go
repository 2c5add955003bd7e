package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/factoryd/internal/events"
)

// registerEventRoutes streams factory events to the bench dashboard.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of handled commands, flash writes, LED changes and tester connections",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"command-handled":   events.CommandHandledEvent{},
		"mac-written":       events.MACWrittenEvent{},
		"led-changed":       events.LEDStateChangedEvent{},
		"client-connection": events.ClientConnectionEvent{},
		"test-passed":       events.TestPassedEvent{},
		"reboot-requested":  events.RebootRequestedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.CommandHandledEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.MACWrittenEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.LEDStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ClientConnectionEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TestPassedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RebootRequestedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
