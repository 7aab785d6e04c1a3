package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

// keepaliveInterval paces SSE comment frames so proxies keep the
// connection open between deltas.
const keepaliveInterval = 15 * time.Second

// attachAvailabilityStream is the connect sequence of the stream
// endpoint: resolve the key, subscribe, then take the starting
// snapshot. Subscribing before the snapshot read means a delta
// committed in between is already buffered rather than missed;
// anything buffered at that point predates the read and is dropped.
func (s *RegistrationService) attachAvailabilityStream(ctx context.Context, key string) (Availability, *FeedSubscription, error) {
	snapshot, err := s.Availability(ctx, key)
	if err != nil {
		return Availability{}, nil, err
	}

	sub := s.Feed.Subscribe(snapshot.TournamentID)

	if fresh, err := s.Availability(ctx, key); err == nil {
		snapshot = fresh
	}
drain:
	for {
		select {
		case <-sub.C:
		default:
			break drain
		}
	}

	return snapshot, sub, nil
}

// StreamAvailability handles GET /tournaments/:key/availability/stream.
// It pushes an availability snapshot on connect and a delta whenever a
// registration for the tournament is inserted or changes status.
// Clients that cannot hold the stream fall back to polling the plain
// availability endpoint; the data is the same, just not live.
func (s *RegistrationService) StreamAvailability(c *fiber.Ctx) error {
	key := c.Params("key")

	snapshot, sub, err := s.attachAvailabilityStream(c.Context(), key)
	if err != nil {
		if errors.Is(err, ErrTournamentNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "tournament_not_found"})
		}
		log.Printf("SSE init error for %s: %v", key, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	// Use fasthttp stream writer; the handler returns before the
	// stream runs, so everything it needs is captured here.
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		writeEvent := func(snap Availability) bool {
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Printf("SSE marshal error for %s: %v", key, err)
				return true
			}
			fmt.Fprintf(w, "event: availability\ndata: %s\n\n", payload)
			return w.Flush() == nil
		}

		if !writeEvent(snapshot) {
			return
		}

		for {
			select {
			case snap := <-sub.C:
				if !writeEvent(snap) {
					// Client disconnected
					return
				}

			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
