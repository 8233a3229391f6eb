package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"refer-bot/internal/bot"
	"refer-bot/internal/config"
	"refer-bot/internal/service"
)

// Telegram echoes this header when a webhook secret is configured.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Server exposes the webhook and the device-verification endpoints.
type Server struct {
	cfg       *config.Config
	bot       *bot.Bot
	referrals *service.ReferralService
}

func New(cfg *config.Config, b *bot.Bot, referrals *service.ReferralService) *Server {
	return &Server{cfg: cfg, bot: b, referrals: referrals}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/healthz", s.handleHome)
	r.Post("/webhook", s.handleWebhook)
	r.Get("/verify", s.handleVerifyPage)
	r.Post("/verify", s.handleVerifyAPI)

	return r
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Running"))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookSecret != "" && r.Header.Get(secretTokenHeader) != s.cfg.WebhookSecret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := s.bot.HandleUpdate(r.Context(), &update); err != nil {
		log.Printf("handle update: %v", err)
	}
	// Always 200 so Telegram does not redeliver failed updates forever.
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type verifyRequest struct {
	User   int64  `json:"user"`
	Device string `json:"device"`
}

type verifyResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg,omitempty"`
}

func (s *Server) handleVerifyAPI(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.User == 0 || req.Device == "" {
		writeJSON(w, http.StatusBadRequest, verifyResponse{Status: "error", Msg: "user and device are required"})
		return
	}

	err := s.referrals.VerifyDevice(r.Context(), req.User, req.Device)
	switch {
	case errors.Is(err, service.ErrDeviceTaken):
		writeJSON(w, http.StatusConflict, verifyResponse{Status: "error", Msg: "Device already used"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, verifyResponse{Status: "error", Msg: "Unknown user"})
	case err != nil:
		log.Printf("verify device for %d: %v", req.User, err)
		writeJSON(w, http.StatusInternalServerError, verifyResponse{Status: "error", Msg: "Try again later"})
	default:
		writeJSON(w, http.StatusOK, verifyResponse{Status: "success"})
	}
}

func (s *Server) handleVerifyPage(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseInt(r.URL.Query().Get("uid"), 10, 64)
	if err != nil || uid == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := verifyPage.Execute(w, verifyPageData{UserID: uid, BotUsername: s.cfg.BotUsername}); err != nil {
		log.Printf("render verify page: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
