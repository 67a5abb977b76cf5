// Package httpapi exposes the gateway operations as JSON endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/nando-os/ghostpbm/chaindata"
	"github.com/nando-os/ghostpbm/eth"
	"github.com/sirupsen/logrus"
)

// Server routes HTTP requests to the PBM client and the chain data aggregator.
type Server struct {
	client       eth.GhostClient
	aggregator   *chaindata.Aggregator
	defaultChain uint64
	logger       *logrus.Logger
	router       *mux.Router
}

func NewServer(client eth.GhostClient, aggregator *chaindata.Aggregator, defaultChain uint64, logger *logrus.Logger) *Server {
	s := &Server{
		client:       client,
		aggregator:   aggregator,
		defaultChain: defaultChain,
		logger:       logger,
		router:       mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.accessLog)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Chain data
	s.router.HandleFunc("/addresses/{address}/balance", s.handleBalance).Methods("GET")
	s.router.HandleFunc("/addresses/{address}/transactions", s.handleTransactions).Methods("GET")
	s.router.HandleFunc("/addresses/{address}/erc20", s.handleERC20Balance).Methods("GET")
	s.router.HandleFunc("/addresses/{address}/erc20/transfers", s.handleERC20Transfers).Methods("GET")
	s.router.HandleFunc("/transactions/{hash}", s.handleTransaction).Methods("GET")

	// PBM contract
	s.router.HandleFunc("/pbm/{address}/balance", s.handlePBMBalance).Methods("GET")
	s.router.HandleFunc("/pbm/{address}/transfers", s.handlePBMTransfers).Methods("GET")
	s.router.HandleFunc("/pbm/pay", s.handlePay).Methods("POST")
	s.router.HandleFunc("/pbm/fund", s.handleFund).Methods("POST")
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.WithField("addr", addr).Info("HTTP API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address, chainID, ok := s.addressAndChain(w, r)
	if !ok {
		return
	}
	balance, err := s.aggregator.GetBalance(r.Context(), address, chainID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": address.Hex(), "chainId": chainID, "balance": balance})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	address, chainID, ok := s.addressAndChain(w, r)
	if !ok {
		return
	}
	dir, err := eth.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	txs, err := s.aggregator.GetTransactions(r.Context(), address, chainID, dir)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleERC20Balance(w http.ResponseWriter, r *http.Request) {
	address, chainID, ok := s.addressAndChain(w, r)
	if !ok {
		return
	}
	balances, err := s.aggregator.GetERC20Balance(r.Context(), address, chainID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *Server) handleERC20Transfers(w http.ResponseWriter, r *http.Request) {
	address, chainID, ok := s.addressAndChain(w, r)
	if !ok {
		return
	}
	dir, err := eth.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	transfers, err := s.aggregator.GetERC20Transfers(r.Context(), address, chainID, dir)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["hash"]
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		s.writeError(w, &eth.ParseError{Field: "hash", Value: raw, Err: err})
		return
	}
	tx, err := s.client.GetTransaction(r.Context(), common.BytesToHash(b))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(tx)
}

func (s *Server) handlePBMBalance(w http.ResponseWriter, r *http.Request) {
	address, err := eth.ParseAddress("address", mux.Vars(r)["address"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	balance, err := s.client.GetPBMBalance(r.Context(), address)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": address.Hex(), "balance": balance})
}

// handlePBMTransfers answers with the decoded records. Entries the decoder
// skipped are listed under "errors" with a 200 status.
func (s *Server) handlePBMTransfers(w http.ResponseWriter, r *http.Request) {
	address, err := eth.ParseAddress("address", mux.Vars(r)["address"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	dir, err := eth.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if dir == eth.DirectionAny {
		dir = eth.DirectionTo
	}
	records, err := s.client.PBMTransfers(r.Context(), address, dir)
	if err != nil && records == nil {
		s.writeError(w, err)
		return
	}
	resp := map[string]any{"transfers": records}
	if err != nil {
		resp["errors"] = []string{err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

type transferRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	s.handleContractWrite(w, r, s.client.Pay)
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	s.handleContractWrite(w, r, s.client.FundUser)
}

func (s *Server) handleContractWrite(w http.ResponseWriter, r *http.Request, send func(context.Context, common.Address, *uint256.Int) (common.Hash, error)) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &eth.ParseError{Field: "request body", Err: err})
		return
	}
	address, err := eth.ParseAddress("address", req.Address)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := eth.ParseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	hash, err := send(r.Context(), address, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transactionHash": hash.Hex()})
}

func (s *Server) addressAndChain(w http.ResponseWriter, r *http.Request) (common.Address, uint64, bool) {
	address, err := eth.ParseAddress("address", mux.Vars(r)["address"])
	if err != nil {
		s.writeError(w, err)
		return common.Address{}, 0, false
	}
	chainID := s.defaultChain
	if raw := r.URL.Query().Get("chain_id"); raw != "" {
		chainID, err = strconv.ParseUint(raw, 0, 64)
		if err != nil {
			s.writeError(w, &eth.ParseError{Field: "chain_id", Value: raw, Err: err})
			return common.Address{}, 0, false
		}
	}
	return address, chainID, true
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": kindOf(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, eth.ErrParse), errors.Is(err, eth.ErrConfig), errors.Is(err, eth.ErrFunctionNotFound):
		return http.StatusBadRequest
	case errors.Is(err, eth.ErrUnsupportedChain):
		return http.StatusNotFound
	case errors.Is(err, eth.ErrRPC):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, eth.ErrParse):
		return "parse"
	case errors.Is(err, eth.ErrConfig):
		return "config"
	case errors.Is(err, eth.ErrFunctionNotFound):
		return "function_not_found"
	case errors.Is(err, eth.ErrUnsupportedChain):
		return "unsupported_chain"
	case errors.Is(err, eth.ErrRPC):
		return "rpc"
	case errors.Is(err, eth.ErrSigning):
		return "signing"
	default:
		return "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
