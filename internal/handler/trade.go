package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/efreitasn/papertrader/internal/service"
	"github.com/go-chi/chi/v5"
)

// TradeHandler handles HTTP requests for trades, portfolios and quotes.
type TradeHandler struct {
	trades *service.TradeService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(trades *service.TradeService) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// tradeRequest is the JSON request body for POST /trades.
type tradeRequest struct {
	Side     string `json:"side"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

// tradeResponse is the JSON response for POST /trades.
type tradeResponse struct {
	Side           string         `json:"side"`
	Symbol         string         `json:"symbol"`
	Quantity       int64          `json:"quantity"`
	Price          moneyResponse  `json:"price"`
	Total          moneyResponse  `json:"total"`
	RealizedProfit *moneyResponse `json:"realized_profit,omitempty"`
	Balance        moneyResponse  `json:"balance"`
	ExecutedAt     string         `json:"executed_at"`
	Message        string         `json:"message"`
}

// positionResponse is a single lot in the portfolio response. Price, value
// and unrealized profit are null when no quote was available.
type positionResponse struct {
	ID               string         `json:"id"`
	Symbol           string         `json:"symbol"`
	Quantity         int64          `json:"quantity"`
	CostBasis        moneyResponse  `json:"cost_basis"`
	Cost             moneyResponse  `json:"cost"`
	Price            *moneyResponse `json:"price"`
	Value            *moneyResponse `json:"value"`
	UnrealizedProfit *moneyResponse `json:"unrealized_profit"`
	OpenedAt         string         `json:"opened_at"`
}

// portfolioResponse is the JSON response for GET /portfolio.
type portfolioResponse struct {
	Username          string             `json:"username"`
	Balance           moneyResponse      `json:"balance"`
	Positions         []positionResponse `json:"positions"`
	MarketValue       moneyResponse      `json:"market_value"`
	TotalValue        moneyResponse      `json:"total_value"`
	UnpricedPositions int                `json:"unpriced_positions"`
	ValuedAt          string             `json:"valued_at"`
}

// quoteResponse is the JSON response for GET /quotes/{symbol}.
type quoteResponse struct {
	Symbol   string        `json:"symbol"`
	Price    moneyResponse `json:"price"`
	QuotedAt string        `json:"quoted_at"`
}

// Execute handles POST /trades.
func (h *TradeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.trades.Execute(r.Context(), sessionFrom(r.Context()), service.TradeRequest{
		Side:     service.Side(req.Side),
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	verb := "Bought"
	if res.Side == service.SideSell {
		verb = "Sold"
	}
	WriteJSON(w, http.StatusOK, tradeResponse{
		Side:           string(res.Side),
		Symbol:         res.Symbol,
		Quantity:       res.Quantity,
		Price:          newMoney(res.Price),
		Total:          newMoney(res.Total),
		RealizedProfit: optionalMoney(res.Realized),
		Balance:        newMoney(res.Balance),
		ExecutedAt:     res.ExecutedAt.Format(time.RFC3339),
		Message: fmt.Sprintf("%s %d %s at %s. New balance: %s.",
			verb, res.Quantity, res.Symbol, domain.Display(res.Price), domain.Display(res.Balance)),
	})
}

// GetPortfolio handles GET /portfolio.
func (h *TradeHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.trades.Portfolio(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	positions := make([]positionResponse, len(p.Lots))
	for i, lot := range p.Lots {
		positions[i] = positionResponse{
			ID:               lot.Position.ID,
			Symbol:           lot.Position.Symbol,
			Quantity:         lot.Position.Quantity,
			CostBasis:        newMoney(lot.Position.CostBasis),
			Cost:             newMoney(lot.Position.Cost()),
			Price:            optionalMoney(lot.Price),
			Value:            optionalMoney(lot.Value),
			UnrealizedProfit: optionalMoney(lot.Profit),
			OpenedAt:         lot.Position.OpenedAt.UTC().Format(time.RFC3339),
		}
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		Username:          p.Username,
		Balance:           newMoney(p.Balance),
		Positions:         positions,
		MarketValue:       newMoney(p.MarketValue),
		TotalValue:        newMoney(p.Balance.Add(p.MarketValue)),
		UnpricedPositions: p.Unpriced,
		ValuedAt:          p.ValuedAt.Format(time.RFC3339),
	})
}

// GetQuote handles GET /quotes/{symbol}.
func (h *TradeHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.trades.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, quoteResponse{
		Symbol:   q.Symbol,
		Price:    newMoney(q.Price),
		QuotedAt: q.QuotedAt.Format(time.RFC3339),
	})
}
