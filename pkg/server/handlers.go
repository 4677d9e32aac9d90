package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nncli/pkg/network"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/mat"
)

// FeedRequest is the body of POST /feed and of every websocket message.
type FeedRequest struct {
	Input []float64 `json:"input" binding:"required"`
}

// FeedResponse carries the output layer activation, or an error on the
// websocket endpoint.
type FeedResponse struct {
	Output []float64 `json:"output,omitempty"`
	Error  string    `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

func (hs *HTTPServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (hs *HTTPServer) handleTopology(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"topology": hs.nn.Topology()})
}

func (hs *HTTPServer) handleFeed(c *gin.Context) {
	var req FeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	output, err := hs.feed(req.Input)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, network.ErrDimensionMismatch) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, FeedResponse{Output: output})
}

// handleFeedSocket answers every input message with one output message until
// the client closes the connection or the server shuts down.
func (hs *HTTPServer) handleFeedSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-hs.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				hs.logger.Printf("websocket request_id=%s: %v", c.GetString("request_id"), err)
			}
			return
		}
		var req FeedRequest
		var resp FeedResponse
		if err := json.Unmarshal(msg, &req); err != nil {
			resp.Error = err.Error()
		} else if output, err := hs.feed(req.Input); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Output = output
		}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (hs *HTTPServer) feed(input []float64) ([]float64, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("%w: input is empty", network.ErrDimensionMismatch)
	}
	output, err := hs.nn.FeedForward(mat.NewVecDense(len(input), input))
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), output.RawVector().Data...), nil
}
