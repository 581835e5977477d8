package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	chatTopic   string
	chatMessage string
	chatSender  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send a message to a topic and print the response",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatTopic, "topic", "t", "", "Topic ID")
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Message to send")
	chatCmd.Flags().StringVarP(&chatSender, "as", "a", "cli:user", "Sender ID")
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatTopic == "" || chatMessage == "" {
		fmt.Println("Error: --topic and --message are required")
		os.Exit(1)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	go a.events.Dispatch(ctx)
	if a.cfg.Analysis.Enabled {
		go a.analysis.Run(ctx)
	}

	if _, ok := a.registry.Responder(chatTopic); !ok {
		return fmt.Errorf("topic %q is not registered (create it with: parley topic create)", chatTopic)
	}

	fmt.Println("Thinking...")
	result, err := a.pipeline.Ask(ctx, chatTopic, chatMessage, chatSender)
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Println("(no response)")
		return nil
	}
	if result.Reasoning != "" && verbose {
		fmt.Println("--- reasoning ---")
		fmt.Println(result.Reasoning)
		fmt.Println("-----------------")
	}
	fmt.Println("\n" + result.Text)

	// Let the analysis worker drain before the process exits.
	if a.cfg.Analysis.Enabled {
		a.analysis.Flush(ctx)
	}
	return nil
}
