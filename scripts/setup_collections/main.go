package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const pocketbaseURL = "http://192.168.100.100:8090"

var httpClient = &http.Client{Timeout: 10 * time.Second}

func main() {
	fmt.Println("🚀 PocketBase Collection Setup Script")
	fmt.Println("=====================================")

	// Load .env file if exists
	godotenv.Load()

	url := getEnv("POCKETBASE_URL", pocketbaseURL)
	token := getEnv("POCKETBASE_TOKEN", "")

	fmt.Printf("Connecting to: %s\n", url)

	if err := checkHealth(url); err != nil {
		fmt.Printf("❌ Cannot connect to PocketBase: %v\n", err)
		os.Exit(1)
	}

	if token == "" {
		fmt.Println("❌ POCKETBASE_TOKEN not set")
		fmt.Println("\nPlease set:")
		fmt.Println("  export POCKETBASE_TOKEN=your_token_here")
		os.Exit(1)
	}

	fmt.Println("✅ Using POCKETBASE_TOKEN from environment")

	for _, col := range collections() {
		fmt.Printf("\n📦 Creating collection: %s\n", col.Name)
		if err := createCollection(url, token, col); err != nil {
			fmt.Printf("   ⚠️  %v\n", err)
		} else {
			fmt.Printf("   ✅ Created successfully\n")
		}
	}

	fmt.Println("\n🎉 Done")
}

type field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
	Max      int    `json:"max,omitempty"`
}

type collection struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Fields []field `json:"fields"`
}

func collections() []collection {
	return []collection{
		{Name: "employees", Type: "base", Fields: []field{
			{Name: "name", Type: "text", Required: true, Max: 255},
			{Name: "employee_code", Type: "text", Max: 64},
			{Name: "department", Type: "text", Max: 255},
			{Name: "telegram_chat_id", Type: "number"},
			{Name: "manager_id", Type: "text", Max: 64},
			{Name: "group_id", Type: "text", Max: 64},
			{Name: "is_active", Type: "bool"},
		}},
		{Name: "facilities", Type: "base", Fields: []field{
			{Name: "name", Type: "text", Required: true, Max: 255},
			{Name: "latitude", Type: "number", Required: true},
			{Name: "longitude", Type: "number", Required: true},
			{Name: "radius_meters", Type: "number"},
			{Name: "is_active", Type: "bool"},
		}},
		{Name: "shifts", Type: "base", Fields: []field{
			{Name: "employee_id", Type: "text", Required: true, Max: 64},
			{Name: "date", Type: "text", Required: true, Max: 10},
			{Name: "expected_start", Type: "text", Max: 8},
			{Name: "expected_end", Type: "text", Max: 8},
		}},
		{Name: "attendance", Type: "base", Fields: []field{
			{Name: "employee_id", Type: "text", Required: true, Max: 64},
			{Name: "shift_id", Type: "text", Max: 64},
			{Name: "date", Type: "text", Required: true, Max: 10},
			{Name: "status", Type: "text", Max: 16},
			{Name: "check_in_time", Type: "date"},
			{Name: "check_in_lat", Type: "number"},
			{Name: "check_in_lng", Type: "number"},
			{Name: "check_out_time", Type: "date"},
			{Name: "check_out_lat", Type: "number"},
			{Name: "check_out_lng", Type: "number"},
			{Name: "overtime_minutes", Type: "number"},
			{Name: "overtime_reason", Type: "text", Max: 512},
		}},
		{Name: "location_pings", Type: "base", Fields: []field{
			{Name: "employee_id", Type: "text", Required: true, Max: 64},
			{Name: "latitude", Type: "number", Required: true},
			{Name: "longitude", Type: "number", Required: true},
			{Name: "kind", Type: "text", Max: 16},
			{Name: "distance_meters", Type: "number"},
			{Name: "attendance_record_id", Type: "text", Max: 64},
			{Name: "pinged_at", Type: "date"},
		}},
		{Name: "scheduled_verifications", Type: "base", Fields: []field{
			{Name: "employee_id", Type: "text", Required: true, Max: 64},
			{Name: "attendance_record_id", Type: "text", Required: true, Max: 64},
			{Name: "kind", Type: "text", Max: 16},
			{Name: "scheduled_for", Type: "date", Required: true},
			{Name: "executed", Type: "bool"},
			{Name: "result", Type: "text", Max: 32},
		}},
		{Name: "supervisors", Type: "base", Fields: []field{
			{Name: "owner_id", Type: "text", Required: true, Max: 64},
			{Name: "display_name", Type: "text", Max: 255},
			{Name: "channel_address", Type: "text", Required: true, Max: 64},
			{Name: "priority", Type: "number"},
			{Name: "is_active", Type: "bool"},
			{Name: "consecutive_failures", Type: "number"},
			{Name: "last_used_at", Type: "date"},
		}},
		{Name: "groups", Type: "base", Fields: []field{
			{Name: "name", Type: "text", Required: true, Max: 255},
			{Name: "manager_id", Type: "text", Required: true, Max: 64},
		}},
		{Name: "delivery_attempts", Type: "base", Fields: []field{
			{Name: "message_id", Type: "text", Required: true, Max: 64},
			{Name: "sender_kind", Type: "text", Max: 16},
			{Name: "sender_id", Type: "text", Max: 64},
			{Name: "success", Type: "bool"},
			{Name: "error", Type: "text", Max: 1024},
			{Name: "attempt_number", Type: "number"},
			{Name: "attempted_at", Type: "date"},
		}},
	}
}

func createCollection(url, token string, col collection) error {
	jsonData, err := json.Marshal(col)
	if err != nil {
		return err
	}

	req, _ := http.NewRequest("POST", url+"/api/collections", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, string(body))
	}
	return nil
}

func checkHealth(url string) error {
	resp, err := httpClient.Get(url + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
