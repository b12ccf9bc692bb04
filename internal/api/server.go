// Package api exposes the market over HTTP and streams market events to
// websocket clients.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"bourse/internal/engine"
	"bourse/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const shutdownTimeout = 5 * time.Second

// HealthFunc reports whether the process is fit to serve. A nil error means
// healthy.
type HealthFunc func() error

type Server struct {
	market   *engine.Market
	hub      *events.Hub
	gatherer prometheus.Gatherer
	health   HealthFunc
	upgrader websocket.Upgrader
}

func NewServer(market *engine.Market, hub *events.Hub, gatherer prometheus.Gatherer, health HealthFunc) *Server {
	if health == nil {
		health = func() error { return nil }
	}
	return &Server{
		market:   market,
		hub:      hub,
		gatherer: gatherer,
		health:   health,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.POST("/company/register", s.registerCompany)
	r.GET("/market/companies", s.listCompanies)
	r.POST("/trader/register", s.registerTrader)
	r.GET("/trader/:id", s.getTrader)

	r.POST("/market/order", s.placeOrder)
	r.GET("/market/orderbook/:symbol", s.getOrderBook)
	r.GET("/market/trades", s.getTrades)
	r.GET("/market/price/:symbol", s.getPrice)
	r.GET("/market/fee-estimate", s.feeEstimate)

	r.GET("/ws", s.streamEvents)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", s.healthz)
	return r
}

// Serve listens on addr until the tomb starts dying, then shuts the HTTP
// server down gracefully.
func (s *Server) Serve(t *tomb.Tomb, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Router()}

	t.Go(func() error {
		<-t.Dying()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("http server listening")
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
