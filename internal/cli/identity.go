package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage assistant and model identities",
}

var identityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all identities",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, ident := range a.dir.List() {
			line := fmt.Sprintf("%-38s %-10s %s", ident.ID, ident.Kind, ident.Name)
			if ident.DelegatesTo != "" {
				line += color.YellowString("  -> %s", ident.DelegatesTo)
			}
			if !ident.Active {
				line += color.RedString("  (inactive)")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var identityCreateModelCmd = &cobra.Command{
	Use:   "create-model <name>",
	Short: "Provision a terminal model identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ident, err := a.dir.CreateModel(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("created model %s (%s)\n", ident.Name, ident.ID)
		return nil
	},
}

var identityAssistantTarget string

var identityCreateAssistantCmd = &cobra.Command{
	Use:   "create-assistant <name>",
	Short: "Provision an assistant identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ident, err := a.dir.CreateAssistant(args[0], identityAssistantTarget)
		if err != nil {
			return err
		}
		fmt.Printf("created assistant %s (%s)\n", ident.Name, ident.ID)
		return nil
	},
}

var identityDelegateCmd = &cobra.Command{
	Use:   "delegate <identity-id> <target-id>",
	Short: "Point an assistant at a different identity (model switching)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.resolver.SetDelegation(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s now delegates to %s\n", args[0], args[1])
		return nil
	},
}

var identityResolveCmd = &cobra.Command{
	Use:   "resolve <identity-id>",
	Short: "Show the terminal model for an identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		model, err := a.resolver.ResolveModel(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s resolves to model %s (%s)\n", args[0], model.Name, model.ID)
		return nil
	},
}

func init() {
	identityCreateAssistantCmd.Flags().StringVarP(&identityAssistantTarget, "delegate-to", "d", "", "Identity this assistant delegates to")
	identityCmd.AddCommand(identityListCmd)
	identityCmd.AddCommand(identityCreateModelCmd)
	identityCmd.AddCommand(identityCreateAssistantCmd)
	identityCmd.AddCommand(identityDelegateCmd)
	identityCmd.AddCommand(identityResolveCmd)
}
