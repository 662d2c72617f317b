package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/bridge"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	maxEmbedMessageBytes = 256 << 10
	sseHeartbeatInterval = 25 * time.Second
)

// EmbedBridge is the part of the messaging bridge the embed endpoints use.
type EmbedBridge interface {
	Deliver(ctx context.Context, sessionID, origin string, payload []byte) error
	SubscribeOutbound(ctx context.Context, sessionID string) (bridge.Subscription, error)
	Mount(ctx context.Context, sessionID string) (*bridge.Mount, error)
}

// EmbedDeliver accepts a message from the host page. The request Origin header
// is the message origin; validation happens in the mounted bridge.
func EmbedDeliver(b EmbedBridge, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEmbedMessageBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read message"))
			return
		}

		sessionID := chi.URLParam(r, "sessionId")
		if err := b.Deliver(r.Context(), sessionID, r.Header.Get("Origin"), body); err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deliver message")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]bool{"accepted": true})
	}
}

// EmbedEvents streams bridge messages to the embedded page as Server-Sent
// Events. The bridge stays mounted for as long as the stream is open.
func EmbedEvents(b EmbedBridge, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID := chi.URLParam(r, "sessionId")
		ctx = logg.WithSessionID(ctx, sessionID)

		sub, err := b.SubscribeOutbound(ctx, sessionID)
		if err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe outbound")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		mount, err := b.Mount(ctx, sessionID)
		if err != nil {
			_ = sub.Close()
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mount bridge")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		// sub must close before Unmount: a pending outbound publish holds the cart lock.
		defer mount.Unmount()
		defer sub.Close()

		rc := http.NewResponseController(w)
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			logg.Warn(logg.WithFields(ctx, map[string]any{"error": err.Error()}), "embed.stream.flush_unsupported")
			return
		}
		logg.Info(ctx, "embed.stream.opened")

		heartbeat := time.NewTicker(sseHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				logg.Info(ctx, "embed.stream.closed")
				return
			case <-mount.Done():
				return
			case <-heartbeat.C:
				if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			case payload, ok := <-sub.Messages():
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			}
		}
	}
}
