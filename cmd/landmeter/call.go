package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwiersma/landmeter/internal/wire"
)

var callArgPairs []string
var callJSON string

var callCmd = &cobra.Command{
	Use:   "call <backend> <tool>",
	Short: "Invoke a single backend tool directly",
	Long: `Call invokes one tool on one backend without going through the
decision loop. Useful for debugging backends and exploring tool output.

Arguments are passed as key=value pairs or raw JSON:
  landmeter call kadaster lookup_parcel --arg postcode=3511LX --arg huisnummer=1
  landmeter call cbs get_statistics --json '{"regio":"Utrecht"}'`,
	Args: cobra.ExactArgs(2),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringArrayVar(&callArgPairs, "arg", nil, "Tool argument as key=value (repeatable)")
	callCmd.Flags().StringVar(&callJSON, "json", "", "Tool arguments as a raw JSON object")
	callCmd.SilenceUsage = true
}

func runCall(cmd *cobra.Command, args []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	if err := env.checkDocker(); err != nil {
		return err
	}

	backend, ok := env.catalog.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown backend %q (available: %s)", args[0], strings.Join(env.catalog.Names(), ", "))
	}

	toolArgs, err := buildCallArguments()
	if err != nil {
		return err
	}

	result, err := env.client.CallTool(cmd.Context(), backend, args[1], toolArgs)
	if err != nil {
		var rpcErr *wire.RPCError
		if errors.As(err, &rpcErr) {
			return fmt.Errorf("backend rejected call: %s (code %d)", rpcErr.Message, rpcErr.Code)
		}
		return fmt.Errorf("call %s.%s: %w", backend.Name, args[1], err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

// buildCallArguments merges --json and --arg flags into one JSON object.
func buildCallArguments() (json.RawMessage, error) {
	if callJSON != "" {
		if len(callArgPairs) > 0 {
			return nil, fmt.Errorf("--json and --arg are mutually exclusive")
		}
		if !json.Valid([]byte(callJSON)) {
			return nil, fmt.Errorf("--json value is not valid JSON")
		}
		return json.RawMessage(callJSON), nil
	}

	if len(callArgPairs) == 0 {
		return nil, nil
	}

	values := make(map[string]any, len(callArgPairs))
	for _, pair := range callArgPairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --arg %q: expected key=value", pair)
		}
		// Numbers and booleans pass through typed, everything else as string.
		var typed any
		if err := json.Unmarshal([]byte(value), &typed); err == nil {
			switch typed.(type) {
			case float64, bool:
				values[key] = typed
				continue
			}
		}
		values[key] = value
	}
	return json.Marshal(values)
}
