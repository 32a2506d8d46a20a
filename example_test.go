package chatbridge_test

import (
	"fmt"

	"github.com/skosovsky/chatbridge"
)

func ExampleNewOptions() {
	opts := chatbridge.NewOptions(
		chatbridge.WithTemperature(0.2),
		chatbridge.WithToolMode(chatbridge.ToolModeAuto),
		chatbridge.WithTools(chatbridge.ToolDescriptor{Name: "get_weather"}),
	)
	fmt.Println(*opts.Temperature, opts.ToolMode, len(opts.Tools))
	// Output: 0.2 auto 1
}

func ExampleParseRole() {
	role, err := chatbridge.ParseRole("Assistant")
	if err != nil {
		panic(err)
	}
	fmt.Println(role)
	// Output: assistant
}
