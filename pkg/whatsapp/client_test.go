package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestClientSendPostsMessage(t *testing.T) {
	var captured *http.Request
	var payload map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return respond(http.StatusOK, `{"success":true}`), nil
	})

	client, err := NewClient("http://crm.test/send", WithHTTPClient(&http.Client{Transport: rt}), WithToken("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = client.Send(context.Background(), Message{To: "+55 (11) 91234-5678", Content: "Olá", Name: "Ana"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if captured.URL.String() != "http://crm.test/send" {
		t.Fatalf("unexpected url %s", captured.URL)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer tok" {
		t.Fatalf("unexpected authorization header %q", got)
	}
	if payload["to"] != "5511912345678" {
		t.Fatalf("unexpected recipient %v", payload["to"])
	}
	if payload["content"] != "Olá" || payload["name"] != "Ana" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestClientSendFailures(t *testing.T) {
	cases := map[string]*http.Response{
		"server error":     respond(http.StatusBadGateway, "upstream down"),
		"rejected by body": respond(http.StatusOK, `{"success":false,"error":"invalid number"}`),
	}
	for name, resp := range cases {
		resp := resp
		rt := roundTripFunc(func(*http.Request) (*http.Response, error) { return resp, nil })
		client, err := NewClient("http://crm.test/send", WithHTTPClient(&http.Client{Transport: rt}))
		if err != nil {
			t.Fatalf("%s: new client: %v", name, err)
		}
		if err := client.Send(context.Background(), Message{To: "5511912345678", Content: "hi"}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestClientSendAcceptsEmptyBody(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) { return respond(http.StatusAccepted, ""), nil })
	client, _ := NewClient("http://crm.test/send", WithHTTPClient(&http.Client{Transport: rt}))

	if err := client.Send(context.Background(), Message{To: "5511912345678", Content: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestClientValidation(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected endpoint to be required")
	}
	client, _ := NewClient("http://crm.test/send")
	if err := client.Send(context.Background(), Message{To: "abc", Content: "hi"}); err == nil {
		t.Fatal("expected invalid phone to fail")
	}
	var nilClient *Client
	if err := nilClient.Send(context.Background(), Message{}); err == nil {
		t.Fatal("expected nil client to fail")
	}
}
