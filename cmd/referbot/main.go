package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"refer-bot/internal/bot"
	"refer-bot/internal/config"
	"refer-bot/internal/gateway"
	"refer-bot/internal/repository"
	"refer-bot/internal/server"
	"refer-bot/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	gw, err := gateway.NewTelegram(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	membershipSvc := service.NewMembershipService(gw, cfg.Channels)
	referralSvc := service.NewReferralService(userRepo, membershipSvc, gw)
	redeemSvc := service.NewRedeemService(db, settingRepo, cfg.WithdrawPoints)

	telegramBot := bot.New(bot.Deps{
		Gateway:     gw,
		Config:      &cfg,
		Users:       userRepo,
		Coupons:     couponRepo,
		Redemptions: redemptionRepo,
		Sessions:    sessionRepo,
		Settings:    settingRepo,
		Membership:  membershipSvc,
		Referrals:   referralSvc,
		Redeem:      redeemSvc,
	})

	scheduler := service.NewSchedulerService(time.Local)
	if cfg.SweepInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.SweepInterval, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := referralSvc.SweepLeft(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("leave sweep: %v", err)
			}
		}); err != nil {
			log.Fatalf("schedule leave sweep: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(&cfg, telegramBot, referralSvc).Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("[info] refer bot listening on %s", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
