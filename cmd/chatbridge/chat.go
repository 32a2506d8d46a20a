package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skosovsky/chatbridge"
)

const chatLongDesc string = `Send one prompt and print the answer.

The prompt is the joined arguments, or stdin when no arguments are given.
Requests that carry tools (--tool) or a tool mode go to the command executor
when one is reachable and fall back to the backend otherwise.

Examples:
  chatbridge chat "What is the capital of France?"
  chatbridge chat --stream --temperature 0.2 "Write a haiku"
  chatbridge chat --preset weather --tool tools/get_weather.json "Weather in Oslo?"`

const chatShortDesc string = "Send a prompt and print the answer"

type chatCommander struct {
	root *rootCommander

	stream    bool
	system    string
	presetID  string
	model     string
	toolMode  string
	toolFiles []string

	temperature      float64
	topP             float64
	topK             int
	frequencyPenalty float64
	presencePenalty  float64
	maxTokens        int
	seed             int64
	parallelTools    bool
}

func newChatCmd(root *rootCommander) *cobra.Command {
	cmder := &chatCommander{root: root}

	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&cmder.stream, "stream", "s", false, "Print the answer as it is generated")
	f.StringVar(&cmder.system, "system", "", "System message")
	f.StringVarP(&cmder.presetID, "preset", "p", "", "Preset id to start from")
	f.StringVarP(&cmder.model, "model", "m", "", "Model override for this request")
	f.StringVar(&cmder.toolMode, "tool-mode", "", "Tool mode: none, auto or required")
	f.StringArrayVar(&cmder.toolFiles, "tool", nil, "JSON file with a tool descriptor or an array of them (repeatable)")
	f.Float64Var(&cmder.temperature, "temperature", 0, "Sampling temperature")
	f.Float64Var(&cmder.topP, "top-p", 0, "Nucleus sampling probability")
	f.IntVar(&cmder.topK, "top-k", 0, "Top-k sampling")
	f.Float64Var(&cmder.frequencyPenalty, "frequency-penalty", 0, "Frequency penalty")
	f.Float64Var(&cmder.presencePenalty, "presence-penalty", 0, "Presence penalty")
	f.IntVar(&cmder.maxTokens, "max-tokens", 0, "Maximum output tokens")
	f.Int64Var(&cmder.seed, "seed", 0, "Sampling seed")
	f.BoolVar(&cmder.parallelTools, "parallel-tools", false, "Allow multiple tool calls per turn")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	extra, err := c.options(cmd)
	if err != nil {
		return err
	}

	var messages []chatbridge.ChatMessage
	if c.system != "" {
		messages = append(messages, chatbridge.NewMessage(chatbridge.RoleSystem, c.system))
	}
	messages = append(messages, chatbridge.NewMessage(chatbridge.RoleUser, prompt))
	opts := chatbridge.NewOptions(extra...)

	if c.presetID != "" {
		reg, err := newPresets(c.root.cfg, c.root.logger)
		if err != nil {
			return err
		}
		if reg == nil {
			return errors.New("--preset needs presets.dir, presets.url or presets.git_url in the configuration")
		}
		defer func() { _ = reg.Close() }()
		p, err := reg.Get(ctx, c.presetID)
		if err != nil {
			return err
		}
		messages = p.Messages(messages...)
		opts = p.Options(extra...)
	}

	client, err := newClient(ctx, c.root.cfg, c.root.logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !c.stream {
		resp, err := client.GetResponse(ctx, messages, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp.Text())
		return nil
	}
	seq, err := client.GetStreamingResponse(ctx, messages, opts)
	if err != nil {
		return err
	}
	for u, err := range seq {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprint(out, u.TextDelta)
	}
	fmt.Fprintln(out)
	return ctx.Err()
}

// options returns only the options whose flags were set, so they can be layered over a preset.
func (c *chatCommander) options(cmd *cobra.Command) ([]chatbridge.Option, error) {
	f := cmd.Flags()
	var opts []chatbridge.Option
	if c.model != "" {
		opts = append(opts, chatbridge.WithModelID(c.model))
	}
	if f.Changed("temperature") {
		opts = append(opts, chatbridge.WithTemperature(c.temperature))
	}
	if f.Changed("top-p") {
		opts = append(opts, chatbridge.WithTopP(c.topP))
	}
	if f.Changed("top-k") {
		opts = append(opts, chatbridge.WithTopK(c.topK))
	}
	if f.Changed("frequency-penalty") {
		opts = append(opts, chatbridge.WithFrequencyPenalty(c.frequencyPenalty))
	}
	if f.Changed("presence-penalty") {
		opts = append(opts, chatbridge.WithPresencePenalty(c.presencePenalty))
	}
	if f.Changed("max-tokens") {
		opts = append(opts, chatbridge.WithMaxOutputTokens(c.maxTokens))
	}
	if f.Changed("seed") {
		opts = append(opts, chatbridge.WithSeed(c.seed))
	}
	if f.Changed("parallel-tools") {
		opts = append(opts, chatbridge.WithAllowMultipleToolCalls(c.parallelTools))
	}
	if c.toolMode != "" {
		mode, err := chatbridge.ParseToolMode(c.toolMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chatbridge.WithToolMode(mode))
	}
	for _, path := range c.toolFiles {
		tools, err := loadToolFile(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chatbridge.WithTools(tools...))
	}
	return opts, nil
}

func readPrompt(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("prompt is empty: pass it as arguments or on stdin")
	}
	return prompt, nil
}

// loadToolFile reads one tool descriptor or a JSON array of them.
func loadToolFile(path string) ([]chatbridge.ToolDescriptor, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("read tool file: %w", err)
	}
	data = bytes.TrimSpace(data)
	var tools []chatbridge.ToolDescriptor
	if bytes.HasPrefix(data, []byte("[")) {
		err = json.Unmarshal(data, &tools)
	} else {
		var t chatbridge.ToolDescriptor
		err = json.Unmarshal(data, &t)
		tools = []chatbridge.ToolDescriptor{t}
	}
	if err != nil {
		return nil, fmt.Errorf("parse tool file %q: %w", path, err)
	}
	for i, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool file %q: tool %d has no name", path, i)
		}
	}
	return tools, nil
}
