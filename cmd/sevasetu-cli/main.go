package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"

	"github.com/sevasetu/portal/internal/chat"
	"github.com/sevasetu/portal/internal/govservices"
)

var (
	serverURL     = envOr("SEVASETU_SERVER_URL", "http://localhost:8000")
	docServiceURL = envOr("SEVASETU_DOCSERVICE_URL", "http://localhost:8001")

	reader   = bufio.NewReader(os.Stdin)
	client   *http.Client
	loggedIn bool
	userID   string
)

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	client = &http.Client{Jar: jar, Timeout: 5 * time.Minute}

	fmt.Println("Welcome to SevaSetu CLI")
	for {
		if !loggedIn {
			printAuthMenu()
		} else {
			printMainMenu()
		}
	}
}

func printAuthMenu() {
	fmt.Println("\n=== Auth Menu ===")
	fmt.Println("1. Sign in")
	fmt.Println("2. Sign up")
	fmt.Println("3. Exit")
	fmt.Print("> ")

	switch prompt("") {
	case "1":
		handleSignIn()
	case "2":
		handleSignUp()
	case "3":
		fmt.Println("Goodbye!")
		os.Exit(0)
	default:
		fmt.Println("Invalid choice")
	}
}

func printMainMenu() {
	fmt.Println("\n=== Main Menu ===")
	fmt.Println("1. Chat with assistant")
	fmt.Println("2. My documents")
	fmt.Println("3. Government schemes")
	fmt.Println("4. Logout")
	fmt.Println("5. Exit")
	fmt.Print("> ")

	switch prompt("") {
	case "1":
		handleChat()
	case "2":
		handleDocuments()
	case "3":
		handleSchemes()
	case "4":
		logout()
	case "5":
		fmt.Println("Goodbye!")
		os.Exit(0)
	default:
		fmt.Println("Invalid choice")
	}
}

func prompt(label string) string {
	if label != "" {
		fmt.Print(label)
	}
	input, err := reader.ReadString('\n')
	if err != nil {
		os.Exit(0)
	}
	return strings.TrimSpace(input)
}

func handleSignUp() {
	name := prompt("Name: ")
	email := prompt("Email: ")
	password := prompt("Password: ")

	payload, _ := json.Marshal(map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	resp, err := client.Post(serverURL+"/api/auth/sign-up", "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("Sign up failed: %s\n", string(body))
		return
	}
	fmt.Println("Sign up successful! Please sign in.")
}

func handleSignIn() {
	email := prompt("Email: ")
	password := prompt("Password: ")

	payload, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	resp, err := client.Post(serverURL+"/api/auth/sign-in", "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("Sign in failed: %s\n", string(body))
		return
	}

	loggedIn = true
	fetchUserID()
	fmt.Println("Signed in.")
}

func fetchUserID() {
	resp, err := client.Get(serverURL + "/api/auth/user-data")
	if err != nil {
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}
	var decoded struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil {
		userID = decoded.User.ID
	}
}

func logout() {
	jar, err := cookiejar.New(nil)
	if err == nil {
		client.Jar = jar
	}
	loggedIn = false
	userID = ""
	fmt.Println("Logged out")
}

func handleChat() {
	documents, err := govservices.NewClient(govservices.ClientConfig{BaseURL: docServiceURL})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	consumer, err := chat.NewConsumer(chat.ConsumerConfig{
		ServerURL:  serverURL,
		Documents:  documents,
		HTTPClient: client,
		UserID:     userID,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nChat started. Commands: /rag toggles document-aware mode,")
	fmt.Println("/audio <path> transcribes a recording, /share <text> shares docs, /quit leaves.")

	for {
		input := prompt("you> ")
		switch {
		case input == "/quit":
			return
		case input == "/rag":
			if consumer.Mode() == chat.ModeDirect {
				consumer.SwitchMode(chat.ModeDocuments)
				fmt.Println("Document-aware mode on (transcript cleared).")
			} else {
				consumer.SwitchMode(chat.ModeDirect)
				fmt.Println("Direct mode on (transcript cleared).")
			}
			continue
		case strings.HasPrefix(input, "/audio "):
			path := strings.TrimSpace(strings.TrimPrefix(input, "/audio "))
			text, err := consumer.SendAudio(context.Background(), path)
			if err != nil {
				fmt.Printf("Audio failed: %v\n", err)
				continue
			}
			fmt.Printf("Transcribed: %s\n", text)
			continue
		case strings.HasPrefix(input, "/share "):
			if err := consumer.Share(context.Background(), strings.TrimPrefix(input, "/share ")); err != nil {
				fmt.Printf("Share failed: %v\n", err)
			}
			printLastAssistantMessage(consumer)
			continue
		case input == "":
			continue
		}

		if err := consumer.Send(context.Background(), input); err != nil {
			fmt.Printf("Send failed: %v\n", err)
		}
		printLastAssistantMessage(consumer)
	}
}

func printLastAssistantMessage(consumer *chat.Consumer) {
	messages := consumer.Transcript().Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Sender == chat.SenderAssistant {
			fmt.Printf("assistant> %s\n", messages[i].Content)
			return
		}
	}
}

func handleDocuments() {
	documents, err := govservices.NewClient(govservices.ClientConfig{BaseURL: docServiceURL})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	files, err := documents.ListFiles(context.Background())
	if err != nil {
		fmt.Printf("Error listing documents: %v\n", err)
		return
	}
	if len(files) == 0 {
		fmt.Println("No documents stored.")
		return
	}
	for _, file := range files {
		fmt.Printf("- %s (%s)\n", file.Filename, file.DownloadURL)
	}
}

func handleSchemes() {
	documents, err := govservices.NewClient(govservices.ClientConfig{BaseURL: docServiceURL})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	schemes, err := documents.Schemes(context.Background())
	if err != nil {
		fmt.Printf("Error listing schemes: %v\n", err)
		return
	}
	for _, scheme := range schemes {
		fmt.Printf("- %s\n  %s\n", scheme.Title, scheme.Description)
	}
}
