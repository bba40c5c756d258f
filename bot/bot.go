package bot

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	bot          *tgbotapi.BotAPI
	targetChatID int64
	pbURL        string
	pbToken      string
	httpClient   = &http.Client{Timeout: 10 * time.Second}
)

// SetPocketBaseURL sets the PocketBase REST API URL
func SetPocketBaseURL(url string) {
	pbURL = strings.TrimRight(url, "/")
}

// SetPocketBaseToken sets the PocketBase auth token
func SetPocketBaseToken(token string) {
	pbToken = token
}

// addAuthHeader adds authorization header if token exists
func addAuthHeader(req *http.Request) {
	if pbToken != "" {
		req.Header.Set("Authorization", pbToken)
	}
}

// Init initializes the Telegram Bot
func Init(token string, authorizedChatIDStr string) error {
	var err error
	bot, err = tgbotapi.NewBotAPI(token)
	if err != nil {
		return err
	}

	bot.Debug = false
	log.Printf("Authorized on account %s", bot.Self.UserName)

	if authorizedChatIDStr != "" {
		id, err := strconv.ParseInt(authorizedChatIDStr, 10, 64)
		if err == nil {
			targetChatID = id
		}
	}

	return nil
}

// StartPolling starts the update loop
func StartPolling() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	go func() {
		for update := range updates {
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			msg := tgbotapi.NewMessage(update.Message.Chat.ID, "")
			msg.ParseMode = "Markdown"

			switch update.Message.Command() {
			case "start":
				msg.Text = "🏥 *ระบบลงเวลาเวรโรงพยาบาล*\n\n" +
					"*คำสั่ง:*\n" +
					"/myinfo - ข้อมูลฉัน\n" +
					"/today - เวลาเข้า-ออกงานวันนี้\n" +
					"/history - ประวัติ 7 วัน\n" +
					"/supervisors - สายแจ้งเตือนสำรองของฉัน"

			case "getid":
				msg.Text = fmt.Sprintf("Chat ID: `%d`", update.Message.Chat.ID)

			case "myinfo":
				handleMyInfo(update.Message.Chat.ID, &msg)

			case "today":
				handleToday(update.Message.Chat.ID, &msg)

			case "history":
				handleHistory(update.Message.Chat.ID, &msg)

			case "supervisors":
				handleSupervisors(update.Message.Chat.ID, &msg)

			default:
				msg.Text = "ไม่รู้จักคำสั่ง ใช้ /start"
			}

			if _, err := bot.Send(msg); err != nil {
				log.Printf("Bot send error: %v", err)
			}
		}
	}()
}

func handleMyInfo(chatID int64, msg *tgbotapi.MessageConfig) {
	emp, err := getEmployeeByChat(chatID)
	if err != nil {
		msg.Text = "❌ ไม่พบข้อมูลพนักงานสำหรับบัญชีนี้"
		return
	}
	msg.Text = fmt.Sprintf("👤 *Info*\nName: %s\nCode: %s\nDept: %s",
		emp.Name, emp.EmployeeCode, emp.Department)
}

func handleToday(chatID int64, msg *tgbotapi.MessageConfig) {
	att, err := getTodayAttendance(chatID)
	if err != nil || att == nil {
		msg.Text = "ยังไม่มีการลงเวลาเข้างานวันนี้"
		return
	}

	text := fmt.Sprintf("📊 *Today*\nIn: %s\nStatus: %s", att.CheckInTime, att.Status)
	if att.CheckOutTime != "" {
		text += "\nOut: " + att.CheckOutTime
	}
	if att.OvertimeMinutes > 0 {
		text += fmt.Sprintf("\nOT: %d นาที", att.OvertimeMinutes)
	}
	msg.Text = text
}

func handleHistory(chatID int64, msg *tgbotapi.MessageConfig) {
	history, err := getAttendanceHistory(chatID, 7)
	if err != nil || len(history) == 0 {
		msg.Text = "No history found"
		return
	}
	text := "📅 *History*\n\n"
	for _, h := range history {
		text += fmt.Sprintf("%s: %s\n", h.Date, h.Status)
	}
	msg.Text = text
}

func handleSupervisors(chatID int64, msg *tgbotapi.MessageConfig) {
	emp, err := getEmployeeByChat(chatID)
	if err != nil {
		msg.Text = "❌ ไม่พบข้อมูลพนักงานสำหรับบัญชีนี้"
		return
	}

	sups, err := getSupervisors(emp.ID)
	if err != nil {
		msg.Text = fmt.Sprintf("Error: %v", err)
		return
	}
	if len(sups) == 0 {
		msg.Text = "ยังไม่มีผู้รับแจ้งเตือนสำรอง"
		return
	}

	text := "📡 *สายแจ้งเตือนสำรอง:*\n"
	for _, s := range sups {
		state := "✅"
		if s.ConsecutiveFailures >= 5 {
			state = "⛔"
		} else if !s.IsActive {
			state = "💤"
		}
		text += fmt.Sprintf("%d. %s %s (fail: %d)\n", s.Priority, state, s.DisplayName, s.ConsecutiveFailures)
	}
	msg.Text = text
}

// REST API Functions

func getEmployeeByChat(chatID int64) (*Employee, error) {
	if pbURL == "" {
		return nil, fmt.Errorf("PocketBase URL not set")
	}

	filter := fmt.Sprintf("telegram_chat_id=%d&&is_active=true", chatID)
	url := fmt.Sprintf("%s/api/collections/employees/records?filter=%s&limit=1", pbURL, filter)

	req, _ := http.NewRequest("GET", url, nil)
	addAuthHeader(req)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Items []Employee `json:"items"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	if len(result.Items) == 0 {
		return nil, fmt.Errorf("not found")
	}

	return &result.Items[0], nil
}

func getTodayAttendance(chatID int64) (*Attendance, error) {
	emp, err := getEmployeeByChat(chatID)
	if err != nil {
		return nil, err
	}

	today := time.Now().Format("2006-01-02")
	filter := fmt.Sprintf("employee_id='%s'&&date='%s'", emp.ID, today)
	url := fmt.Sprintf("%s/api/collections/attendance/records?filter=%s&limit=1", pbURL, filter)

	req, _ := http.NewRequest("GET", url, nil)
	addAuthHeader(req)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Items []Attendance `json:"items"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	if len(result.Items) == 0 {
		return nil, nil
	}

	return &result.Items[0], nil
}

func getAttendanceHistory(chatID int64, days int) ([]Attendance, error) {
	emp, err := getEmployeeByChat(chatID)
	if err != nil {
		return nil, err
	}

	startDate := time.Now().AddDate(0, 0, -days).Format("2006-01-02")
	filter := fmt.Sprintf("employee_id='%s'&&date>='%s'", emp.ID, startDate)
	url := fmt.Sprintf("%s/api/collections/attendance/records?filter=%s&sort=-date", pbURL, filter)

	req, _ := http.NewRequest("GET", url, nil)
	addAuthHeader(req)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Items []Attendance `json:"items"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return result.Items, nil
}

func getSupervisors(ownerID string) ([]Supervisor, error) {
	if pbURL == "" {
		return nil, fmt.Errorf("PocketBase URL not set")
	}

	filter := fmt.Sprintf("owner_id='%s'", ownerID)
	url := fmt.Sprintf("%s/api/collections/supervisors/records?filter=%s&sort=priority", pbURL, filter)

	req, _ := http.NewRequest("GET", url, nil)
	addAuthHeader(req)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Items []Supervisor `json:"items"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return result.Items, nil
}

// SendNotification sends message to the admin chat
func SendNotification(message string) {
	if bot == nil || targetChatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(targetChatID, message)
	msg.ParseMode = "Markdown"
	if _, err := bot.Send(msg); err != nil {
		log.Printf("Failed to send: %v", err)
	}
}

// Types
type Employee struct {
	ID             string `json:"id"`
	TelegramChatID int64  `json:"telegram_chat_id"`
	Name           string `json:"name"`
	EmployeeCode   string `json:"employee_code"`
	Department     string `json:"department"`
	IsActive       bool   `json:"is_active"`
}

type Attendance struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	Date            string `json:"date"`
	Status          string `json:"status"`
	CheckInTime     string `json:"check_in_time"`
	CheckOutTime    string `json:"check_out_time"`
	OvertimeMinutes int    `json:"overtime_minutes"`
}

type Supervisor struct {
	ID                  string `json:"id"`
	OwnerID             string `json:"owner_id"`
	DisplayName         string `json:"display_name"`
	Priority            int    `json:"priority"`
	IsActive            bool   `json:"is_active"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}
