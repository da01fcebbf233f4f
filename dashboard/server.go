// Package dashboard exposes the ledger state over a small HTTP JSON API.
// Consumers poll it; there is no push channel for ledger changes.
package dashboard

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/agentfolio/agentfolio/internal/domain"
	"github.com/agentfolio/agentfolio/internal/services/ledger"
)

const defaultHistoryLimit = 100

// DecisionReader replays journaled agent decisions.
type DecisionReader interface {
	EventsAfter(index uint64) ([]domain.DecisionEventRecord, error)
}

// Server serves the ledger API.
type Server struct {
	addr      string
	ledger    *ledger.Ledger
	decisions DecisionReader
	logger    *zap.Logger
}

// NewServer creates a dashboard server.
func NewServer(addr string, l *ledger.Ledger, decisions DecisionReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{addr: addr, ledger: l, decisions: decisions, logger: logger}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/balance", s.handleBalance)
	mux.HandleFunc("/api/trades", s.handleTrades)
	mux.HandleFunc("/api/snapshots", s.handleSnapshots)
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/decisions", s.handleDecisions)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via
// ACME, plus an HTTP server on port 80 for the HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("http (acme) server error", zap.Error(err))
		}
	}()

	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.Balance(r.Context())
	if err != nil {
		s.fail(w, "load balance", err)
		return
	}
	s.writeJSON(w, balance)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.ledger.TradeHistory(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		s.fail(w, "load trades", err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	s.writeJSON(w, trades)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.ledger.SnapshotHistory(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		s.fail(w, "load snapshots", err)
		return
	}
	if snaps == nil {
		snaps = []domain.Snapshot{}
	}
	s.writeJSON(w, snaps)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.PerformanceReport(r.Context())
	if err != nil {
		s.fail(w, "compute report", err)
		return
	}
	s.writeJSON(w, presentReport(report))
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.decisions == nil {
		http.Error(w, "decision journal not available", http.StatusServiceUnavailable)
		return
	}
	after, _ := strconv.ParseUint(r.URL.Query().Get("after"), 10, 64)
	records, err := s.decisions.EventsAfter(after)
	if err != nil {
		s.fail(w, "load decisions", err)
		return
	}
	if records == nil {
		records = []domain.DecisionEventRecord{}
	}
	s.writeJSON(w, records)
}

// reportView is the presentation form of the performance report. Percentage
// and ratio fields are rounded to 2 decimal places here and nowhere else; the
// engine keeps full precision.
type reportView struct {
	TotalTrades      int    `json:"total_trades"`
	ProfitableTrades int    `json:"profitable_trades"`
	TotalFees        string `json:"total_fees"`
	AvgTradeSize     string `json:"avg_trade_size"`
	WinRate          string `json:"win_rate"`
	TotalVolume      string `json:"total_volume"`
	DailyVolume      string `json:"daily_volume"`
	CostBasis        string `json:"cost_basis"`
	AvgReturn        string `json:"avg_return"`
	RealizedProfit   string `json:"realized_profit"`
	UnrealizedProfit string `json:"unrealized_profit"`
	TotalProfit      string `json:"total_profit"`
	SharpeRatio      string `json:"sharpe_ratio"`
	MaxDrawdown      string `json:"max_drawdown"`
	TotalReturn      string `json:"total_return"`
}

func presentReport(r domain.PerformanceReport) reportView {
	return reportView{
		TotalTrades:      r.TotalTrades,
		ProfitableTrades: r.ProfitableTrades,
		TotalFees:        r.TotalFees.StringFixed(2),
		AvgTradeSize:     r.AvgTradeSize.String(),
		WinRate:          r.WinRate.StringFixed(2),
		TotalVolume:      r.TotalVolume.StringFixed(2),
		DailyVolume:      r.DailyVolume.StringFixed(2),
		CostBasis:        r.CostBasis.StringFixed(2),
		AvgReturn:        r.AvgReturn.StringFixed(2),
		RealizedProfit:   r.RealizedProfit.StringFixed(2),
		UnrealizedProfit: r.UnrealizedProfit.StringFixed(2),
		TotalProfit:      r.TotalProfit.StringFixed(2),
		SharpeRatio:      r.SharpeRatio.StringFixed(2),
		MaxDrawdown:      r.MaxDrawdown.StringFixed(2),
		TotalReturn:      r.TotalReturn.StringFixed(2),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, zap.Error(err))
	http.Error(w, op+" failed", http.StatusInternalServerError)
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultHistoryLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return defaultHistoryLimit
	}
	return limit
}
