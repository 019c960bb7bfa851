package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgard/codegenius/internal/gateway"
	"github.com/edgard/codegenius/internal/server"
)

// service prepares configuration and the gateway for a one-shot command.
// Logs go to stderr so stdout carries only the JSON result.
func (a *app) service(cmd *cobra.Command) (server.Service, error) {
	if err := a.setup(cmd.ErrOrStderr()); err != nil {
		return nil, err
	}
	svc, err := a.build(cmd.Context(), a.cfg, a.log, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gateway: %w", err)
	}
	return svc, nil
}

func newDebugCmd(a *app) *cobra.Command {
	var language, file string
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Find and fix issues in a code snippet",
		Example: `  codegenius debug --language javascript --file app.js
  echo 'function f(x) return x+1' | codegenius debug -l javascript`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := readCode(cmd, file)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd)
			if err != nil {
				return err
			}
			result, err := svc.AnalyzeCode(cmd.Context(), code, language)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "Language of the code")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read code from file instead of stdin")
	_ = cmd.MarkFlagRequired("language")
	return cmd
}

func newExplainCmd(a *app) *cobra.Command {
	var language, file string
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain what a code snippet does",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := readCode(cmd, file)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd)
			if err != nil {
				return err
			}
			result, err := svc.ExplainCode(cmd.Context(), code, language)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "Language of the code")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read code from file instead of stdin")
	_ = cmd.MarkFlagRequired("language")
	return cmd
}

func newTranslateCmd(a *app) *cobra.Command {
	var from, to, file string
	cmd := &cobra.Command{
		Use:     "translate",
		Short:   "Translate a code snippet to another language",
		Example: `  codegenius translate --from python --to go --file script.py`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := readCode(cmd, file)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd)
			if err != nil {
				return err
			}
			result, err := svc.TranslateCode(cmd.Context(), code, from, to)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source language")
	cmd.Flags().StringVar(&to, "to", "", "Target language")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read code from file instead of stdin")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newChatCmd(a *app) *cobra.Command {
	var systemPrompt, historyFile string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a message to the coding assistant",
		Long: `Send a message to the coding assistant. Earlier turns can be supplied as a
JSON array of {"role","content"} objects with --history.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var messages []gateway.ChatMessage
			if historyFile != "" {
				var err error
				if messages, err = readHistory(historyFile); err != nil {
					return err
				}
			}
			messages = append(messages, gateway.ChatMessage{
				Role:    gateway.RoleUser,
				Content: strings.Join(args, " "),
			})

			svc, err := a.service(cmd)
			if err != nil {
				return err
			}
			reply, err := svc.ChatWithModel(cmd.Context(), messages, systemPrompt)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reply)
		},
	}
	cmd.Flags().StringVarP(&systemPrompt, "system", "s", "", "Custom system prompt")
	cmd.Flags().StringVar(&historyFile, "history", "", "JSON file with earlier chat turns")
	return cmd
}

// readCode reads the snippet from file, or from stdin when file is empty or "-".
func readCode(cmd *cobra.Command, file string) (string, error) {
	if file != "" && file != "-" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read code file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read code from stdin: %w", err)
	}
	return string(data), nil
}

func readHistory(path string) ([]gateway.ChatMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	var messages []gateway.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse chat history %s: %w", path, err)
	}
	return messages, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
