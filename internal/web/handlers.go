package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/vitos/trade_journal/internal/domain"
	"go.uber.org/zap"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// corsGET allows cross-origin GET/OPTIONS only and rejects everything else
// with 405 before the handler runs.
func (s *Server) corsGET(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			next(w, r)
		default:
			s.writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol is required"})
		return
	}
	literal := r.URL.Query().Get("raw") == "1"

	price, resolved, err := s.prices.Resolve(r.Context(), symbol, literal)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"symbol":         strings.ToUpper(symbol),
		"resolvedSymbol": resolved,
		"price":          price,
		"timestamp":      nowMillis(),
		"source":         s.prices.Source(),
	})
}

// handlePrices always answers 200: partial failure is part of the payload,
// never a request failure.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("symbols"))
	if raw == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbols is required"})
		return
	}

	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			symbols = append(symbols, part)
		}
	}

	prices, failed := s.prices.GetMany(r.Context(), symbols)
	if failed == nil {
		failed = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"prices":    prices,
		"failed":    failed,
		"timestamp": nowMillis(),
	})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"query":       query,
			"suggestions": []domain.SymbolMatch{},
		})
		return
	}

	suggestions, err := s.prices.Search(r.Context(), query)
	if err != nil {
		s.logger.Warn("Symbol search failed", zap.String("query", query), zap.Error(err))
		suggestions = nil
	}
	if suggestions == nil {
		suggestions = []domain.SymbolMatch{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"query":       query,
		"suggestions": suggestions,
	})
}
