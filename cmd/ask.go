package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the course materials",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "session ID to continue a previous conversation")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, logger, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a, logger)

	question := strings.Join(args, " ")

	resp, err := a.RAG.AnswerQuery(ctx, askSessionID, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(resp.Answer)

	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range resp.Sources {
			if src.Link != "" {
				fmt.Printf("  - %s (%s)\n", src.Text, src.Link)
			} else {
				fmt.Printf("  - %s\n", src.Text)
			}
		}
	}

	fmt.Println()
	fmt.Printf("Session: %s\n", resp.SessionID)
	return nil
}
