package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"med-shift-bot/bot"
	"med-shift-bot/config"
	"med-shift-bot/internal/handlers"
	"med-shift-bot/internal/repository"
	"med-shift-bot/internal/services"
)

// sweepInterval is the cadence of the due-verification sweep.
const sweepInterval = time.Minute

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Config loaded successfully")

	// Create application context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, initiating graceful shutdown...")
		cancel()
	}()

	// Initialize Telegram Bot
	if err := initBot(cfg); err != nil {
		log.Printf("Warning: Failed to init Telegram Bot: %v", err)
	}

	// Initialize application dependencies
	handler, scheduler := initApplication(cfg)

	// Drive the verification sweep on a fixed cadence. The scheduler itself
	// never waits; pending checks live in PocketBase rows.
	go runSweepLoop(ctx, scheduler)

	// Setup HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/api/checkin", handler.HandleCheckIn)
	mux.HandleFunc("/api/checkout", handler.HandleCheckOut)
	mux.HandleFunc("/api/location", handler.HandleLocation)
	mux.HandleFunc("/api/verifications/run", handler.HandleRunDue)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":8080",
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Println("Server starting on :8080")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped gracefully")
}

// initBot initializes the Telegram bot
func initBot(cfg *config.Config) error {
	if err := bot.Init(cfg.TelegramBotToken, cfg.AuthorizedChatID); err != nil {
		return err
	}

	// Set PocketBase URL and token for bot
	bot.SetPocketBaseURL(cfg.PocketBaseURL)
	bot.SetPocketBaseToken(cfg.PocketBaseToken)
	bot.StartPolling()

	log.Println("Telegram Bot Initialized")
	return nil
}

// initApplication initializes all application dependencies
func initApplication(cfg *config.Config) (*handlers.AttendanceHandler, *services.VerificationScheduler) {
	// Initialize repositories with PocketBase REST API
	employeeStore := repository.NewPocketBaseEmployeeStore(cfg.PocketBaseURL)
	facilityStore := repository.NewPocketBaseFacilityStore(cfg.PocketBaseURL)
	shiftStore := repository.NewPocketBaseShiftStore(cfg.PocketBaseURL)
	groupStore := repository.NewPocketBaseGroupStore(cfg.PocketBaseURL)
	attendanceStore := repository.NewPocketBaseAttendanceStore(cfg.PocketBaseURL)
	pingStore := repository.NewPocketBasePingStore(cfg.PocketBaseURL)
	verificationStore := repository.NewPocketBaseVerificationStore(cfg.PocketBaseURL)
	supervisorStore := repository.NewPocketBaseSupervisorStore(cfg.PocketBaseURL)
	deliveryLogStore := repository.NewPocketBaseDeliveryLogStore(cfg.PocketBaseURL)

	clock := repository.SystemClock{}
	sender := bot.NewSender()

	// Initialize services
	router := services.NewDeliveryRouter(employeeStore, groupStore, supervisorStore, deliveryLogStore, sender, clock)
	proximity := services.NewProximityEvaluator(facilityStore, cfg.DefaultFacilityRadiusMeters)
	scheduler := services.NewVerificationScheduler(verificationStore, attendanceStore, router,
		cfg.PeriodicIntervalMinutes, cfg.EndReminderIntervalMinutes)
	// employees without a ward group chat fall back to the admin channel
	ledger := services.NewAttendanceLedger(shiftStore, attendanceStore, pingStore, employeeStore,
		proximity, scheduler, router, bot.SendNotification, clock,
		cfg.ToleranceMinutes, cfg.MaxAllowedDistanceMeters)

	// Initialize handlers
	return handlers.NewAttendanceHandler(ledger, scheduler), scheduler
}

// runSweepLoop executes due verifications every sweepInterval until ctx ends
func runSweepLoop(ctx context.Context, scheduler *services.VerificationScheduler) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			processed, err := scheduler.RunDue(ctx, now)
			if err != nil {
				log.Printf("⚠️ Verification sweep failed: %v", err)
				continue
			}
			if processed > 0 {
				log.Printf("⏰ Verification sweep processed %d items", processed)
			}
		}
	}
}
