package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/karigpt-broker/internal/commands"
	"github.com/tbourn/karigpt-broker/internal/http/middleware"
	"github.com/tbourn/karigpt-broker/internal/services"
)

// PostMessageRequest is one inbound chat message from an external gateway.
type PostMessageRequest struct {
	MessageID  string `json:"message_id" example:"evt-001"`
	ChannelID  string `json:"channel_id" binding:"required" example:"general"`
	AuthorID   string `json:"author_id" binding:"required" example:"123456789012345678"`
	AuthorName string `json:"author_name" example:"ann"`
	AuthorBot  bool   `json:"author_is_bot"`
	Text       string `json:"text" binding:"required,max=4000" example:"oracle: what is the meaning of life?"`
}

// PostMessageResponse reports what the gate did and the replies it would
// have posted to the channel.
type PostMessageResponse struct {
	Outcome     string   `json:"outcome" example:"answered"`
	Personality string   `json:"personality,omitempty" example:"oracle"`
	Command     string   `json:"command,omitempty" example:"daily_status"`
	Count       int      `json:"count,omitempty" example:"4"`
	Replies     []string `json:"replies"`
	Duplicate   bool     `json:"duplicate,omitempty"`
}

// Outcome reported for text commands handled by the ingress.
const outcomeCommand = "command"

// PostMessage godoc
// @ID          postMessage
// @Summary     Ingest a chat message
// @Description Runs one message through the request gate (trigger match, cache, quota, backend) and returns the replies. Messages that are not triggers but parse as a text command (for example "/daily_status") run that command. A repeated Idempotency-Key is acknowledged without reprocessing.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Gateway event id for dedup"  example(evt-001)
// @Param       body  body  handlers.PostMessageRequest  true  "Inbound message"
// @Success     200  {object}  handlers.PostMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse  "Reply could not be delivered"
// @Failure     503  {object}  handlers.ErrorResponse  "Broker shutting down"
// @Router      /messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	if middleware.IsReplay(c) {
		ok(c, http.StatusOK, PostMessageResponse{Outcome: string(services.OutcomeIgnored), Replies: []string{}, Duplicate: true})
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel_id, author_id and text are required")
		return
	}
	msg := services.Message{
		ID:          strings.TrimSpace(req.MessageID),
		ChannelID:   strings.TrimSpace(req.ChannelID),
		AuthorID:    strings.TrimSpace(req.AuthorID),
		AuthorName:  strings.TrimSpace(req.AuthorName),
		AuthorIsBot: req.AuthorBot,
		Text:        req.Text,
	}
	lg := middleware.LoggerFrom(c)
	ctx, capture := WithCapture(c.Request.Context())

	out, err := h.d.Gate.Handle(ctx, msg)
	if err != nil {
		if errors.Is(err, services.ErrGateClosed) {
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "broker is shutting down")
			return
		}
		var derr *services.DeliveryError
		if errors.As(err, &derr) {
			fail(c, http.StatusBadGateway, ErrCodeDeliveryFailed, "reply could not be delivered")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "message handling failed")
		return
	}
	resp := PostMessageResponse{
		Outcome:     string(out.Kind),
		Personality: out.Personality,
		Count:       out.Count,
	}

	if out.Kind == services.OutcomeIgnored && h.d.Commands != nil && !msg.AuthorIsBot {
		if inv, isCmd := commands.Parse(msg.Text); isCmd {
			inv.UserID, inv.ChannelID = msg.AuthorID, msg.ChannelID
			reply, err := h.d.Commands.Execute(ctx, inv)
			if err != nil {
				fail(c, http.StatusInternalServerError, ErrCodeCommandFailed, "command failed")
				return
			}
			resp.Outcome, resp.Command = outcomeCommand, inv.Name
			for _, text := range []string{reply.Text, reply.ChannelText} {
				if strings.TrimSpace(text) != "" {
					_ = CaptureChannel{}.Send(ctx, msg.ChannelID, text)
				}
			}
		}
	}
	resp.Replies = capture.Replies()

	if key, has := middleware.EventKey(c); has && h.d.Receipts != nil {
		if err := h.d.Receipts.Mark(ctx, h.d.ReceiptSource, key, resp.Outcome, h.d.ReceiptTTL); err != nil {
			lg.Warn().Err(err).Str("event_key", key).Msg("event receipt not stored")
		}
	}
	lg.Info().Str("outcome", resp.Outcome).Str("personality", resp.Personality).Msg("message ingested")
	ok(c, http.StatusOK, resp)
}
