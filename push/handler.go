package push

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

// CallbackHandler exposes the hub as the internal delivery endpoint the
// worker posts results to: POST /internal/connections/:id with the payload
// as the request body.
func CallbackHandler(hub *Hub, log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		connectionID := ctx.Param("id")

		data, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.String(http.StatusBadRequest, "unreadable body")
			return
		}

		err = hub.SendTo(ctx.Request.Context(), connectionID, data)
		switch {
		case err == nil:
			ctx.Status(http.StatusNoContent)
		case errors.Is(err, domain.ErrGone):
			ctx.String(http.StatusGone, "connection gone")
		default:
			log.Error("push callback delivery failed", "connection_id", connectionID, "error", err)
			ctx.String(http.StatusInternalServerError, "delivery failed")
		}
	}
}
