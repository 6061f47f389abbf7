package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/karigpt-broker/internal/personality"
)

// ListPersonalitiesResponse lists the registry in name order.
type ListPersonalitiesResponse struct {
	Default       string                    `json:"default" example:"karigpt"`
	Personalities []personality.Personality `json:"personalities"`
}

// ListPersonalities godoc
// @ID          listPersonalities
// @Summary     List personalities
// @Description Returns every configured personality and the default used in single-trigger mode.
// @Tags        Personalities
// @Produce     json
// @Success     200  {object}  handlers.ListPersonalitiesResponse
// @Router      /personalities [get]
func (h *Handlers) ListPersonalities(c *gin.Context) {
	reg := h.d.Personalities
	resp := ListPersonalitiesResponse{Default: reg.Default().Name}
	for _, name := range reg.Names() {
		p, _ := reg.Get(name)
		resp.Personalities = append(resp.Personalities, p)
	}
	ok(c, http.StatusOK, resp)
}

// GetPersonality godoc
// @ID          getPersonality
// @Summary     Describe one personality
// @Tags        Personalities
// @Produce     json
// @Param       name  path  string  true  "Personality name (case-insensitive)"  example(oracle)
// @Success     200  {object}  personality.Personality
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown personality"
// @Router      /personalities/{name} [get]
func (h *Handlers) GetPersonality(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	p, found := h.d.Personalities.Get(name)
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "personality not found")
		return
	}
	ok(c, http.StatusOK, p)
}
