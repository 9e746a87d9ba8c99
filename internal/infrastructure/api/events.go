package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/infrastructure/pubsub"

	"github.com/rs/zerolog"
)

var sseHeartbeat = 25 * time.Second

// syncEventsHandler streams the caller's sync page outcomes as server-sent events
func syncEventsHandler(events *pubsub.SyncPubSub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ownerID := domain.GetOwnerIDFromContext(ctx)

		flusher, ok := w.(http.Flusher)
		if !ok || events == nil {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		sub := events.Subscribe(ctx, &pubsub.SyncEventFilter{OwnerID: ownerID})

		fmt.Fprintf(w, "event: connected\ndata: {\"owner_id\":%q}\n\n", ownerID)
		flusher.Flush()

		logger.Debug().Str("ownerId", ownerID).Str("channelId", sub.ID).Msg("SSE client connected")

		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug().Str("ownerId", ownerID).Msg("SSE client disconnected")
				return
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case event, ok := <-sub.Events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					logger.Error().Err(err).Msg("Failed to marshal sync event")
					continue
				}
				fmt.Fprintf(w, "event: sync\ndata: %s\n\n", data)
				flusher.Flush()
			}
		}
	}
}
