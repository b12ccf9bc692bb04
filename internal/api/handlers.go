package api

import (
	"errors"
	"net/http"
	"strconv"

	"bourse/internal/common"
	"bourse/internal/engine"

	"github.com/gin-gonic/gin"
)

const defaultTradeLimit = 50

type registerCompanyRequest struct {
	Symbol            string  `json:"symbol" binding:"required"`
	Name              string  `json:"name" binding:"required"`
	Price             float64 `json:"price"`
	OutstandingShares uint64  `json:"outstanding_shares"`
}

type registerTraderRequest struct {
	Name      string            `json:"name" binding:"required"`
	Cash      float64           `json:"cash"`
	Portfolio map[string]uint64 `json:"portfolio"`
}

func (s *Server) registerCompany(c *gin.Context) {
	var req registerCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	company, err := s.market.RegisterCompany(req.Symbol, req.Name, req.Price, req.OutstandingShares)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Company registered successfully", "company": company})
}

func (s *Server) listCompanies(c *gin.Context) {
	c.JSON(http.StatusOK, s.market.Companies())
}

func (s *Server) registerTrader(c *gin.Context) {
	var req registerTraderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trader, err := s.market.RegisterTrader(req.Name, req.Cash, req.Portfolio)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trader)
}

func (s *Server) getTrader(c *gin.Context) {
	trader, err := s.market.Trader(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trader)
}

func (s *Server) placeOrder(c *gin.Context) {
	var req engine.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := s.market.PlaceOrder(req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order placed successfully", "order": order})
}

func (s *Server) getOrderBook(c *gin.Context) {
	snap, err := s.market.OrderBook(c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) getTrades(c *gin.Context) {
	limit := defaultTradeLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, s.market.Trades(limit))
}

func (s *Server) getPrice(c *gin.Context) {
	price, err := s.market.Price(c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, price)
}

func (s *Server) feeEstimate(c *gin.Context) {
	price, err := strconv.ParseFloat(c.Query("price"), 64)
	if err != nil || !common.Finite(price) || price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a finite non-negative number"})
		return
	}
	quantity, err := strconv.ParseUint(c.Query("quantity"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be a non-negative integer"})
		return
	}
	estimate := s.market.EstimateFees(price, quantity)
	if !common.Finite(estimate.BuyerTotal) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trade value out of range"})
		return
	}
	c.JSON(http.StatusOK, estimate)
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps a market error class onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrInsufficientFunds), errors.Is(err, common.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
