package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/parley-ai/parley/internal/registry"
	"github.com/parley-ai/parley/internal/store"
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage conversation topics",
}

var (
	topicCreateID        string
	topicCreateLabel     string
	topicCreateResponder string
	topicCreateInit      bool
)

var topicCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a topic with an AI responder",
	RunE: func(cmd *cobra.Command, args []string) error {
		if topicCreateID == "" || topicCreateResponder == "" {
			return fmt.Errorf("--id and --responder are required")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, ok := a.dir.Get(topicCreateResponder); !ok {
			return fmt.Errorf("unknown responder identity %q", topicCreateResponder)
		}
		label := topicCreateLabel
		if label == "" {
			label = topicCreateID
		}
		err = a.store.UpsertTopic(&store.TopicRecord{
			ID:          topicCreateID,
			Label:       label,
			ResponderID: topicCreateResponder,
			Priority:    registry.DefaultPriority,
		})
		if err != nil {
			return err
		}
		a.registry.Register(topicCreateID, topicCreateResponder)
		fmt.Printf("registered topic %s with responder %s\n", topicCreateID, topicCreateResponder)

		if topicCreateInit {
			ctx := context.Background()
			go a.events.Dispatch(ctx)
			if a.cfg.Analysis.Enabled {
				go a.analysis.Run(ctx)
			}
			fmt.Println("generating welcome message...")
			if err := a.pipeline.BeginInitialization(ctx, topicCreateID, topicCreateResponder); err != nil {
				return fmt.Errorf("welcome generation: %w", err)
			}
			fmt.Println("topic ready")
		}
		return nil
	},
}

var topicListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		topics, err := a.store.ListTopics()
		if err != nil {
			return err
		}
		for _, t := range topics {
			state := ""
			if a.registry.IsLoading(t.ID) {
				state = color.YellowString("  (initializing)")
			}
			fmt.Printf("%-30s prio=%-4d responder=%s  %s%s\n", t.ID, t.Priority, t.ResponderID, t.Label, state)
		}
		return nil
	},
}

var topicPriorityCmd = &cobra.Command{
	Use:   "priority <topic-id> <n>",
	Short: "Set a topic's priority",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("priority must be an integer: %w", err)
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.SetTopicPriority(args[0], priority); err != nil {
			return err
		}
		a.registry.SetPriority(args[0], priority)
		fmt.Printf("topic %s priority set to %d\n", args[0], priority)
		return nil
	},
}

var topicSwitchCmd = &cobra.Command{
	Use:   "switch <topic-id> <responder-id>",
	Short: "Switch a topic's responder identity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, ok := a.dir.Get(args[1]); !ok {
			return fmt.Errorf("unknown responder identity %q", args[1])
		}
		if err := a.registry.SwitchResponder(args[0], args[1]); err != nil {
			return err
		}
		topic, err := a.store.GetTopic(args[0])
		if err != nil {
			return err
		}
		topic.ResponderID = args[1]
		if err := a.store.UpsertTopic(topic); err != nil {
			return err
		}
		fmt.Printf("topic %s responder switched to %s\n", args[0], args[1])
		return nil
	},
}

var topicSubjectsCmd = &cobra.Command{
	Use:   "subjects <topic-id>",
	Short: "Show the subject timeline for a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		subjects, err := a.store.ListSubjects(args[0])
		if err != nil {
			return err
		}
		for _, s := range subjects {
			fmt.Printf("%s  %s\n", s.CreatedAt.Format("2006-01-02 15:04"), color.CyanString(s.Description))
			keywords, err := a.store.Keywords(s.ID)
			if err != nil {
				continue
			}
			for _, kw := range keywords {
				fmt.Printf("    %-24s x%d\n", kw.Term, kw.Frequency)
			}
		}
		summaries, err := a.store.Summaries(args[0])
		if err == nil && len(summaries) > 0 {
			fmt.Println("\nsummaries:")
			for _, sum := range summaries {
				fmt.Printf("  [%s] %s\n", sum.CreatedAt.Format("2006-01-02"), sum.Content)
			}
		}
		return nil
	},
}

func init() {
	topicCreateCmd.Flags().StringVar(&topicCreateID, "id", "", "Topic ID")
	topicCreateCmd.Flags().StringVar(&topicCreateLabel, "label", "", "Display label")
	topicCreateCmd.Flags().StringVar(&topicCreateResponder, "responder", "", "Responder identity ID")
	topicCreateCmd.Flags().BoolVar(&topicCreateInit, "init", false, "Generate the responder's welcome message")
	topicCmd.AddCommand(topicCreateCmd)
	topicCmd.AddCommand(topicListCmd)
	topicCmd.AddCommand(topicPriorityCmd)
	topicCmd.AddCommand(topicSwitchCmd)
	topicCmd.AddCommand(topicSubjectsCmd)
}
