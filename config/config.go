package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// PocketBase External Server
	PocketBaseURL   string // PocketBase server URL (e.g., http://192.168.100.100:8090)
	PocketBaseToken string // Auth token for API access

	// Telegram Bot
	TelegramBotToken string
	AuthorizedChatID string // admin/ward group chat

	// Attendance engine tuning
	ToleranceMinutes            int     // late threshold after expected start
	PeriodicIntervalMinutes     int     // spacing of mid-shift location checks
	EndReminderIntervalMinutes  int     // spacing of check-out reminders
	MaxAllowedDistanceMeters    float64 // manager alert threshold
	DefaultFacilityRadiusMeters float64 // geofence radius when a facility has none
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("godotenv.Load() error: %v", err)
	}

	// Get PocketBase URL (required)
	pbURL := os.Getenv("POCKETBASE_URL")
	if pbURL == "" {
		pbURL = "http://192.168.100.100:8090" // Default external server
	}

	return &Config{
		PocketBaseURL:    pbURL,
		PocketBaseToken:  os.Getenv("POCKETBASE_TOKEN"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AuthorizedChatID: os.Getenv("AUTHORIZED_CHAT_ID"),

		ToleranceMinutes:            intEnv("TOLERANCE_MINUTES", 15),
		PeriodicIntervalMinutes:     intEnv("PERIODIC_INTERVAL_MINUTES", 60),
		EndReminderIntervalMinutes:  intEnv("END_REMINDER_INTERVAL_MINUTES", 30),
		MaxAllowedDistanceMeters:    floatEnv("MAX_ALLOWED_DISTANCE_METERS", 2000),
		DefaultFacilityRadiusMeters: floatEnv("DEFAULT_FACILITY_RADIUS_METERS", 500),
	}, nil
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Invalid %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func floatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("Invalid %s=%q, using default %v", key, v, def)
		return def
	}
	return f
}
