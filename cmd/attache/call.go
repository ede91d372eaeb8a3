package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifeos-tools/attache/internal/dispatch"
)

var (
	callAction string
	callArgs   string
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Run one action with JSON arguments",
	Long: `Runs a single action the way a chat integration would: the reply text
goes to stdout, including failures rendered as replies ("which one did
you mean?"). Intended as the machine entry point; the today/upcoming/
briefing/free commands are friendlier wrappers around the same actions.

Actions: ` + fmt.Sprint(dispatch.ActionNames()),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callAction, "action", "", "Action name (required)")
	callCmd.Flags().StringVar(&callArgs, "args", "{}", "Action arguments as a JSON object")
	_ = callCmd.MarkFlagRequired("action")
}

func runCall(cmd *cobra.Command, args []string) error {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(callArgs), &decoded); err != nil {
		return fmt.Errorf("parsing --args: %w", err)
	}
	return runAction(cmd.Context(), dispatch.Request{Action: callAction, Args: decoded})
}

// runAction wires the pipeline, runs one request and prints the reply.
// Domain failures are replies too, so they go to stdout and the command
// still exits zero.
func runAction(ctx context.Context, req dispatch.Request) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.handler.Handle(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		fmt.Println(dispatch.FormatError(a.zone, err))
		return nil
	}
	fmt.Println(reply)
	return nil
}
