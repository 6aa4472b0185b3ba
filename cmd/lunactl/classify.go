package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/lovecleanup/internal/classifier"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Show how Luna tags a message",
	Long:  `Prints the mood, intent and emotional signals detected in the text, plus the response type a reply with the same words would get.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print JSON instead of text")
}

type classification struct {
	Mood         string `json:"mood"`
	Intent       string `json:"intent"`
	ResponseType string `json:"response_type"`
	Signals      string `json:"signals,omitempty"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	res := classifier.Classify(text)
	c := classification{
		Mood:         string(res.Mood),
		Intent:       string(res.Intent),
		ResponseType: string(classifier.DetectResponseType(text)),
		Signals:      classifier.AnalyzeEmotionalContext(text).String(),
	}

	out := cmd.OutOrStdout()
	if classifyJSON {
		return printJSON(out, c)
	}
	fmt.Fprintf(out, "mood:          %s\n", c.Mood)
	fmt.Fprintf(out, "intent:        %s\n", c.Intent)
	fmt.Fprintf(out, "response type: %s\n", c.ResponseType)
	if c.Signals != "" {
		fmt.Fprintf(out, "signals:       %s\n", c.Signals)
	}
	return nil
}
