package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/parley-ai/parley/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and data store status",
	RunE: func(cmd *cobra.Command, args []string) error {
		printHeader("Parley status")

		path, err := config.ConfigPath()
		if err == nil {
			fmt.Printf("config:  %s\n", path)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("db:      %s\n", a.cfg.Paths.DBPath)
		fmt.Printf("model:   %s\n", a.cfg.Model.Name)

		identities := a.dir.List()
		models, assistants := 0, 0
		for _, ident := range identities {
			if ident.IsModel() {
				models++
			} else {
				assistants++
			}
		}
		topics, _ := a.store.ListTopics()
		fmt.Printf("identities: %d (%d assistants, %d models)\n", len(identities), assistants, models)
		fmt.Printf("topics:     %d\n", len(topics))

		if a.cfg.Relay.Enabled() {
			fmt.Printf("relay:   %s -> %s\n", a.cfg.Relay.Brokers, a.cfg.Relay.EventTopic)
		} else {
			fmt.Println("relay:   " + color.YellowString("disabled"))
		}
		if a.cfg.Channels.Slack.Enabled {
			fmt.Println("slack:   enabled")
		} else {
			fmt.Println("slack:   " + color.YellowString("disabled"))
		}
		return nil
	},
}
