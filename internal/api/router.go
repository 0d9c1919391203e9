// Package api exposes a single in-process expiring queue over HTTP.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adharris/fifu-queue/pkg/common/http/handler"
	"github.com/adharris/fifu-queue/pkg/datastructs/fifu"
	"github.com/adharris/fifu-queue/pkg/datastructs/queue"
)

const service = "queue"

// Queue is the queue served by the router.
type Queue interface {
	queue.Queue[string]
	TTL() time.Duration
	Stats() fifu.Stats
}

// AddRequest is the body of POST /v1/items. Every item must be non-blank.
type AddRequest struct {
	Items []string `json:"items" validate:"required,min=1,dive,required"`
}

// AddResponse reports how many items were added and the queue size after.
type AddResponse struct {
	Added int `json:"added"`
	Size  int `json:"size"`
}

// PopRequest is the body of POST /v1/items/pop. It carries no fields.
type PopRequest struct{}

// PopResponse holds the popped item. Found is false when the queue had no
// live item, which is not an error.
type PopResponse struct {
	Value string `json:"value,omitempty"`
	Found bool   `json:"found"`
}

// StatusRequest is the (empty) input of GET /v1/queue.
type StatusRequest struct{}

// StatusResponse describes the queue. Size counts items not yet evicted,
// so it may include expired ones that Pop would skip.
type StatusResponse struct {
	Size  int        `json:"size"`
	Empty bool       `json:"empty"`
	TTL   string     `json:"ttl"`
	Stats fifu.Stats `json:"stats"`
}

type api struct {
	q Queue
}

// NewRouter builds the gin engine for q.
func NewRouter(q Queue, log *zap.Logger) *gin.Engine {
	a := &api{q: q}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	v1 := r.Group("/v1")
	v1.POST("/items", handler.Wrap(service, a.add))
	v1.POST("/items/pop", handler.Wrap(service, a.pop))
	v1.GET("/queue", handler.Wrap(service, a.status))

	return r
}

func (a *api) add(_ context.Context, req *AddRequest) (AddResponse, error) {
	a.q.Add(req.Items...)
	return AddResponse{Added: len(req.Items), Size: a.q.Size()}, nil
}

func (a *api) pop(context.Context, *PopRequest) (PopResponse, error) {
	v, ok := a.q.Pop()
	return PopResponse{Value: v, Found: ok}, nil
}

func (a *api) status(context.Context, *StatusRequest) (StatusResponse, error) {
	size := a.q.Size()
	return StatusResponse{
		Size:  size,
		Empty: size == 0,
		TTL:   a.q.TTL().String(),
		Stats: a.q.Stats(),
	}, nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
