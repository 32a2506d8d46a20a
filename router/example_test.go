package router_test

import (
	"context"
	"fmt"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/adapter"
	"github.com/skosovsky/chatbridge/router"
)

type echoBackend struct{}

func (echoBackend) ModelID() string { return "echo" }

func (echoBackend) CompleteChat(_ context.Context, messages []chatbridge.ChatMessage, _ adapter.SamplingSettings) (any, error) {
	last := messages[len(messages)-1].Text
	return map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": "echo: " + last}}}}, nil
}

func ExampleRouter_GetResponse() {
	r := router.New(echoBackend{})
	resp, err := r.GetResponse(context.Background(), []chatbridge.ChatMessage{
		chatbridge.NewMessage(chatbridge.RoleUser, "hi"),
	}, nil)
	if err != nil {
		panic(err)
	}
	fmt.Println(resp.Message.Role, resp.Text())
	// Output: assistant echo: hi
}

func ExampleRouter_GetStreamingResponse() {
	r := router.New(echoBackend{})
	seq, err := r.GetStreamingResponse(context.Background(), []chatbridge.ChatMessage{
		chatbridge.NewMessage(chatbridge.RoleUser, "stream"),
	}, chatbridge.NewOptions(chatbridge.WithTools(chatbridge.ToolDescriptor{Name: "noop"})))
	if err != nil {
		panic(err)
	}
	for u, err := range seq {
		if err != nil {
			panic(err)
		}
		fmt.Println(u.TextDelta)
	}
	// Output: echo: stream
}
