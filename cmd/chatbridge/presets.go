package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const presetsLongDesc string = `List preset ids, or show one preset.

Examples:
  chatbridge presets
  chatbridge presets weather`

type presetsCommander struct {
	root *rootCommander
}

func newPresetsCmd(root *rootCommander) *cobra.Command {
	cmder := &presetsCommander{root: root}

	return &cobra.Command{
		Use:   "presets [id]",
		Short: "List or show presets",
		Long:  presetsLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}
}

func (c *presetsCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	reg, err := newPresets(c.root.cfg, c.root.logger)
	if err != nil {
		return err
	}
	if reg == nil {
		return errors.New("no preset source configured: set presets.dir, presets.url or presets.git_url")
	}
	defer func() { _ = reg.Close() }()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		ids, err := reg.List(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	p, err := reg.Get(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "id:          %s\n", p.ID)
	if p.Version != "" {
		fmt.Fprintf(out, "version:     %s\n", p.Version)
	}
	if p.Description != "" {
		fmt.Fprintf(out, "description: %s\n", p.Description)
	}
	if p.Model != "" {
		fmt.Fprintf(out, "model:       %s\n", p.Model)
	}
	if len(p.Tags) > 0 {
		fmt.Fprintf(out, "tags:        %s\n", strings.Join(p.Tags, ", "))
	}
	opts := p.Options()
	if len(opts.Tools) > 0 {
		names := make([]string, 0, len(opts.Tools))
		for _, t := range opts.Tools {
			names = append(names, t.Name)
		}
		fmt.Fprintf(out, "tools:       %s\n", strings.Join(names, ", "))
	}
	return nil
}
