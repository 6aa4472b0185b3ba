package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/lovecleanup/internal/agent"
	"github.com/ashureev/lovecleanup/internal/domain"
)

const cliUserID = "cli"

var (
	chatName string
	chatMood string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation with Luna",
	Long: `Reads one message per line and streams Luna's reply word by word.

In-chat commands:
  /reset  clear the conversation
  /stats  show request counters and provider state
  /quit   leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatName, "name", "", "Name Luna uses to address you")
	chatCmd.Flags().StringVar(&chatMood, "mood", "", "Current mood hint (sad, anxious, angry, hopeful, ...)")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	out := cmd.OutOrStdout()
	cc := domain.ChatContext{UserName: chatName, UserMood: domain.Mood(chatMood)}
	scanner := bufio.NewScanner(cmd.InOrStdin())

	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := eng.svc.Reset(ctx, cliUserID, cliUserID); err != nil {
				return err
			}
			fmt.Fprintln(out, "Conversa reiniciada.")
		case "/stats":
			if err := printJSON(out, eng.svc.Stats(ctx, cliUserID, cliUserID)); err != nil {
				return err
			}
		default:
			if err := chatTurn(cmd, eng, line, cc); err != nil {
				return err
			}
		}
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

// chatTurn prints each partial as the words it adds to the previous one.
func chatTurn(cmd *cobra.Command, eng *engine, message string, cc domain.ChatContext) error {
	out := cmd.OutOrStdout()
	req := agent.ChatRequest{Message: message, Context: cc, UserID: cliUserID, SessionID: cliUserID}

	printed := ""
	for chunk, err := range eng.svc.Chat(cmd.Context(), req) {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		if chunk.Kind == agent.ChunkFinal {
			fmt.Fprint(out, strings.TrimPrefix(chunk.Text, printed))
			fmt.Fprintln(out)
			printReplyFooter(out, chunk.Response)
			return nil
		}
		fmt.Fprint(out, strings.TrimPrefix(chunk.Text, printed))
		printed = chunk.Text
	}
	return nil
}

func printReplyFooter(w io.Writer, resp *domain.AIResponse) {
	if resp == nil {
		return
	}
	meta := fmt.Sprintf("[%s via %s", resp.Type, resp.Provider)
	if resp.Error != "" {
		meta += ", " + resp.Error
	}
	meta += "]"
	fmt.Fprintln(w, meta)
	if len(resp.QuickReplies) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(resp.QuickReplies, " | "))
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
