package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/karigpt-broker/internal/http/middleware"
)

// DailyStatusResponse is one user's quota position for the current day.
type DailyStatusResponse struct {
	UserID         string    `json:"user_id" example:"123456789012345678"`
	Used           int       `json:"used" example:"3"`
	Remaining      int       `json:"remaining" example:"17"`
	Limit          int       `json:"limit" example:"20"`
	ResetInSeconds int64     `json:"reset_in_seconds" example:"36000"`
	ResetAt        time.Time `json:"reset_at"`
}

// UsageSummary godoc
// @ID          usageSummary
// @Summary     Usage summary
// @Description Aggregates every stored request. Supports weak ETag via If-None-Match when the store can fingerprint itself.
// @Tags        Usage
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"usage:42:2025-03-01T00:00:05.000000+00:00\")
// @Success     200  {object}  services.Summary
// @Header      200  {string}  ETag  "Weak ETag for the current table state"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Store failure"
// @Router      /usage/summary [get]
func (h *Handlers) UsageSummary(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if h.d.Stats != nil {
		if count, latest, err := h.d.Stats.Stats(ctx); err == nil {
			etag := fmt.Sprintf(`W/"usage:%d:%s"`, count, latest)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		} else {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("usage stats unavailable, skipping etag")
		}
	}

	sum, err := h.d.Metrics.Summarize(ctx, h.d.Now())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSummaryFailed, "could not summarize usage")
		return
	}
	ok(c, http.StatusOK, sum)
}

// DailyStatus godoc
// @ID          dailyStatus
// @Summary     Daily quota status
// @Description Requests used and remaining today for one user, and the time until the next reset.
// @Tags        Usage
// @Produce     json
// @Param       user_id  query  string  true  "Chat user id"  example(123456789012345678)
// @Success     200  {object}  handlers.DailyStatusResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing user_id"
// @Router      /usage/daily [get]
func (h *Handlers) DailyStatus(c *gin.Context) {
	uid := strings.TrimSpace(c.Query("user_id"))
	if uid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id is required")
		return
	}
	now := h.d.Now()
	st := h.d.Quota.Status(c.Request.Context(), uid, now)
	ok(c, http.StatusOK, DailyStatusResponse{
		UserID:         uid,
		Used:           st.Used,
		Remaining:      st.Remaining,
		Limit:          st.Limit,
		ResetInSeconds: int64(st.ResetIn / time.Second),
		ResetAt:        now.Add(st.ResetIn).In(h.d.Location).Truncate(time.Second),
	})
}
