package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"therapy_webapp/internal/domain"
	"therapy_webapp/internal/service"
	"therapy_webapp/internal/ws"
	"therapy_webapp/internal/wsclient"
)

// Smoke driver: joins a running server as both roles of one therapy
// session and plays the first choice prompt end to end.
func main() {
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET not set")
	}
	sessionID := os.Getenv("SESSION_ID")
	if sessionID == "" {
		log.Fatal("SESSION_ID not set")
	}
	supervisorID := int64(1)

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	service.InitJWT()
	cookie, err := service.GenerateJWT(supervisorID)
	if err != nil {
		log.Fatalf("gen supervisor token: %v", err)
	}

	// одноразовый токен ученика через HTTP эндпоинт
	linkURL := fmt.Sprintf("http://127.0.0.1:%s/api/v1/sessions/%s/link", port, sessionID)
	req, _ := http.NewRequest("POST", linkURL, bytes.NewReader(nil))
	req.AddCookie(&http.Cookie{Name: ws.SupervisorCookie, Value: cookie})
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("mint link token: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		log.Fatalf("mint link token: status %d", res.StatusCode)
	}
	var link struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&link); err != nil {
		log.Fatalf("decode link token: %v", err)
	}

	wsURL := fmt.Sprintf("ws://127.0.0.1:%s/ws", port)
	ctx := context.Background()

	supervisor := wsclient.New(wsclient.Config{
		URL:       wsURL,
		SessionID: sessionID,
		Role:      domain.RoleSupervisor,
		Cookie:    cookie,
	})
	learner := wsclient.New(wsclient.Config{
		URL:       wsURL,
		SessionID: sessionID,
		Role:      domain.RoleLearner,
		Token:     link.Token,
	})

	results := make(chan ws.Message, 4)
	for _, c := range []*wsclient.Client{supervisor, learner} {
		c.Subscribe(ws.MsgAnswerResult, func(msg ws.Message) { results <- msg })
	}

	if err := supervisor.Connect(ctx); err != nil {
		log.Fatalf("supervisor connect: %v", err)
	}
	defer supervisor.Close()

	if err := learner.Connect(ctx); err != nil {
		log.Fatalf("learner connect: %v", err)
	}
	defer learner.Close()

	// дождаться активации (оба подключены)
	time.Sleep(500 * time.Millisecond)

	if err := learner.Send(ws.MsgSelectOption, map[string]string{"optionId": "p1-a"}); err != nil {
		log.Fatalf("select option: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case msg := <-results:
			log.Printf("answer-result: %s", string(msg.Payload))
		case <-time.After(3 * time.Second):
			log.Fatal("timed out waiting for answer-result")
		}
	}

	log.Printf("final state: %s", string(learner.State()))
	log.Println("smoke test finished")
}
