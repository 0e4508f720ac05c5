package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Reverie server URL")
	personaID := flag.String("persona", "", "Persona ID to talk with (default: first registered)")
	flag.Parse()

	fmt.Println("Reverie CLI Chat")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Type 'exit' or 'quit' to leave. Commands: /personas, /summary")
	fmt.Println("---")

	id := *personaID
	if id == "" {
		id = firstPersona(*server)
		if id == "" {
			printError("No personas registered. Create one via POST /api/personas first.")
			return
		}
	}

	sessionID := startSession(*server, id)
	if sessionID == "" {
		return
	}
	fmt.Printf("Session %s started with persona %s\n", sessionID, id)
	defer endSession(*server, sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/personas" {
			listPersonas(*server)
			continue
		}
		if input == "/summary" {
			fetchSummary(*server, id)
			continue
		}

		sendTurn(*server, sessionID, input)
	}
}

func firstPersona(server string) string {
	resp, err := http.Get(server + "/api/personas")
	if err != nil {
		printError("Failed to fetch personas: %v", err)
		return ""
	}
	defer resp.Body.Close()

	var personas []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&personas); err != nil {
		printError("Failed to parse personas: %v", err)
		return ""
	}
	if len(personas) == 0 {
		return ""
	}
	return personas[0].ID
}

func listPersonas(server string) {
	resp, err := http.Get(server + "/api/personas")
	if err != nil {
		printError("Failed to fetch personas: %v", err)
		return
	}
	defer resp.Body.Close()

	var personas []struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Relationship string `json:"relationship"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&personas); err != nil {
		printError("Failed to parse personas: %v", err)
		return
	}
	if len(personas) == 0 {
		fmt.Println("No personas registered yet.")
		return
	}
	fmt.Println("Personas:")
	for _, p := range personas {
		fmt.Printf("  %s — %s (%s)\n", p.ID, p.Name, p.Relationship)
	}
}

func fetchSummary(server, personaID string) {
	resp, err := http.Get(server + "/api/personas/" + personaID + "/memory/summary")
	if err != nil {
		printError("Failed to fetch summary: %v", err)
		return
	}
	defer resp.Body.Close()

	var sum struct {
		TotalMemories  int            `json:"total_memories"`
		CountsByType   map[string]int `json:"counts_by_type"`
		CountsBySource map[string]int `json:"counts_by_source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		printError("Failed to parse summary: %v", err)
		return
	}
	fmt.Printf("Memories: %d\n", sum.TotalMemories)
	for t, n := range sum.CountsByType {
		fmt.Printf("  %s: %d\n", t, n)
	}
}

func startSession(server, personaID string) string {
	body, _ := json.Marshal(map[string]string{"persona_id": personaID})
	resp, err := http.Post(server+"/api/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Failed to start session: %v", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return ""
	}

	var sess struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		printError("Failed to parse session: %v", err)
		return ""
	}
	return sess.ID
}

func endSession(server, sessionID string) {
	req, _ := http.NewRequest("DELETE", server+"/api/sessions/"+sessionID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

func sendTurn(server, sessionID, text string) {
	body, _ := json.Marshal(map[string]interface{}{
		"text":       text,
		"confidence": 1.0,
	})

	client := &http.Client{Timeout: 65 * time.Second}
	resp, err := client.Post(
		server+"/api/sessions/"+sessionID+"/turns",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		// A newer turn superseded this one; nothing to print.
		return
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var reply struct {
		Text     string `json:"text"`
		Emotion  string `json:"emotion"`
		Degraded bool   `json:"degraded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}

	tag := reply.Emotion
	if reply.Degraded {
		tag += ", degraded"
	}
	fmt.Printf("\033[36m[%s]\033[0m %s\n", tag, reply.Text)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
