package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"paper-trading-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// paperTradingHandler serves the account snapshot and dispatches
// commands. Command parameters arrive stringified, so every value is
// parsed back from its string form here.
func (s *Server) paperTradingHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeSuccess(w, s.engine.Status(), "")
	case http.MethodPost:
		s.commandHandler(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) commandHandler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	command := req["command"]
	s.logger.Info("Command received", zap.String("command", command))

	switch command {
	case "start":
		interval := time.Duration(paramInt(req, "interval")) * time.Second
		if err := s.engine.Start(interval); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeSuccess(w, nil, "Paper trading started")

	case "stop":
		s.engine.Stop()
		s.writeSuccess(w, nil, "Paper trading stopped")

	case "reset":
		if err := s.engine.Reset(); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeSuccess(w, nil, "Account reset")

	case "switch":
		mode := req["mode"]
		if err := s.engine.SwitchMode(mode); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeSuccess(w, nil, fmt.Sprintf("Switched to %s mode", mode))

	case "api":
		key, secret := req["key"], req["secret"]
		if key == "" || secret == "" {
			s.writeError(w, http.StatusBadRequest, "key and secret are required")
			return
		}
		if err := s.engine.SetAPIKeys(key, secret); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeSuccess(w, nil, "API keys updated")

	case "auto-execute":
		enabled, err := strconv.ParseBool(req["enabled"])
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid enabled value")
			return
		}
		if err := s.engine.ConfigureAutoExecute(enabled, paramFloat(req, "confidence"), paramInt(req, "interval")); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeSuccess(w, nil, "Auto-execution settings updated")

	case "execute-trade":
		symbol := req["symbol"]
		if symbol == "" {
			s.writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		trade, err := s.engine.ExecuteTrade(symbol, req["side"],
			paramFloat(req, "price"), paramFloat(req, "quantity"), paramFloat(req, "confidence"))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeSuccess(w, trade, fmt.Sprintf("%s %s executed", trade.Side, trade.Symbol))

	case "export":
		path, err := s.engine.Export(req["path"])
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeSuccess(w, nil, fmt.Sprintf("Results exported to %s", path))

	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown command: %s", command))
	}
}

// exchangeConfigsHandler is the CRUD surface for per-user exchange API
// configurations. Ownership comes from the user_id query parameter.
func (s *Server) exchangeConfigsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		configs, err := s.store.ListExchangeConfigs(userID)
		if err != nil {
			s.logger.Error("Failed to list exchange configs", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to list exchange configs")
			return
		}
		s.writeSuccess(w, configs, "")

	case http.MethodPost:
		var payload struct {
			Exchange string `json:"exchange"`
			Label    string `json:"label"`
			APIKey   string `json:"api_key"`
			Secret   string `json:"secret"`
			Testnet  bool   `json:"testnet"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if payload.Exchange == "" {
			s.writeError(w, http.StatusBadRequest, "exchange is required")
			return
		}
		cfg := models.ExchangeConfig{
			UserID:   userID,
			Exchange: payload.Exchange,
			Label:    payload.Label,
			APIKey:   payload.APIKey,
			Secret:   payload.Secret,
			Testnet:  payload.Testnet,
		}
		if err := s.store.CreateExchangeConfig(&cfg); err != nil {
			s.logger.Error("Failed to create exchange config", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to create exchange config")
			return
		}
		s.writeSuccess(w, cfg, "Exchange configuration created")

	case http.MethodPut:
		id, ok := s.configID(w, r)
		if !ok {
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updates := make(map[string]any)
		for _, field := range []string{"exchange", "label", "api_key", "secret", "testnet"} {
			if value, present := payload[field]; present {
				updates[field] = value
			}
		}
		if len(updates) == 0 {
			s.writeError(w, http.StatusBadRequest, "nothing to update")
			return
		}
		if err := s.store.UpdateExchangeConfig(userID, id, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.writeError(w, http.StatusNotFound, "exchange config not found")
				return
			}
			s.logger.Error("Failed to update exchange config", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to update exchange config")
			return
		}
		s.writeSuccess(w, nil, "Exchange configuration updated")

	case http.MethodDelete:
		id, ok := s.configID(w, r)
		if !ok {
			return
		}
		if err := s.store.DeleteExchangeConfig(userID, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.writeError(w, http.StatusNotFound, "exchange config not found")
				return
			}
			s.logger.Error("Failed to delete exchange config", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to delete exchange config")
			return
		}
		s.writeSuccess(w, nil, "Exchange configuration deleted")

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) configID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := r.URL.Query().Get("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func paramFloat(req map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(req[key], 64)
	if err != nil {
		return 0
	}
	return v
}

func paramInt(req map[string]string, key string) int {
	v, err := strconv.Atoi(req[key])
	if err != nil {
		return 0
	}
	return v
}
