// Command ws_smoke exercises a running server end to end: it registers (or
// logs in) a user over the REST API, opens the websocket, authenticates, and
// sends one broadcast message while printing everything it receives.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"pulsechat/internal/proto"
)

func main() {
	httpAddr := flag.String("http", "http://localhost:8080", "server base URL")
	wsAddr := flag.String("ws", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "smoketester", "username to register or log in with")
	password := flag.String("password", "smoketest-password", "password for the user")
	to := flag.String("to", proto.BroadcastTarget, `recipient: "all" or a user id`)
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, err := obtainToken(ctx, *httpAddr, *user, *password)
	if err != nil {
		log.Fatalf("obtain token: %v", err)
	}

	conn, _, err := websocket.Dial(ctx, *wsAddr, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(frameType string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Fatalf("marshal %s: %v", frameType, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); err != nil {
			log.Fatalf("send %s: %v", frameType, err)
		}
	}

	mustSend(proto.InboundTypeHello, proto.HelloData{Token: token})
	mustSend(proto.InboundTypeSend, proto.SendData{To: *to, Content: *text})

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			log.Printf("read: %v", err)
			return
		}
		if outbound.Error != nil {
			log.Fatalf("server error: %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}
		fmt.Printf("<- %s %s %s\n", outbound.Type, outbound.Event, outbound.Data)
		if outbound.Event == proto.EventMessage {
			return
		}
	}
}

// obtainToken registers the user and falls back to login when the username
// is already taken.
func obtainToken(ctx context.Context, baseURL, user, password string) (string, error) {
	token, status, err := postCredentials(ctx, baseURL+"/api/register", user, password)
	if err != nil {
		return "", err
	}
	if status == http.StatusConflict {
		token, status, err = postCredentials(ctx, baseURL+"/api/login", user, password)
		if err != nil {
			return "", err
		}
	}
	if token == "" {
		return "", fmt.Errorf("unexpected status %d", status)
	}
	return token, nil
}

func postCredentials(ctx context.Context, url, user, password string) (string, int, error) {
	body, err := json.Marshal(map[string]string{"username": user, "password": password})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", resp.StatusCode, nil
	}

	var auth struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", resp.StatusCode, err
	}
	return auth.Token, resp.StatusCode, nil
}
