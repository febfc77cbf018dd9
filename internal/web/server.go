package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vitos/trade_journal/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router *http.ServeMux
	server *http.Server
	prices *usecase.PriceService
	logger *zap.Logger
}

func NewServer(port int, prices *usecase.PriceService, logger *zap.Logger) *Server {
	s := &Server{
		router: http.NewServeMux(),
		prices: prices,
		logger: logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/price", s.corsGET(s.handlePrice))
	s.router.HandleFunc("/prices", s.corsGET(s.handlePrices))
	s.router.HandleFunc("/symbols", s.corsGET(s.handleSymbols))
}

func (s *Server) Start() error {
	s.logger.Info("Starting price API server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
