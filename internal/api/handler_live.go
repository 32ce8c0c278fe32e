package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// liveHandler upgrades GET /live to a WebSocket and delegates to the
// live-stream manager.
func (s *Server) liveHandler(c *echo.Context) error {
	if s.live == nil {
		return echo.NewHTTPError(503, "live stream not available")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	s.live.HandleConnection(c.Request().Context(), conn)
	return nil
}
