package main

import (
	"flag"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/brscn2/aesthetiq-sub001/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var serverURL, userID, sessionID string
	flag.StringVar(&serverURL, "server", defaultServerURL(), "Base URL of the stylist service")
	flag.StringVar(&userID, "user", "guest", "User id sent with each turn")
	flag.StringVar(&sessionID, "session", "", "Resume an existing session id (optional)")
	flag.Parse()

	client := tui.NewStreamClient(serverURL)
	m := tui.New(client, userID, sessionID)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}

func defaultServerURL() string {
	if v := os.Getenv("STYLIST_SERVER_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}
