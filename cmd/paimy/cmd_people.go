package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paimy-ai/paimy/pkg/protocol"
)

var personFlags struct {
	storeID   string
	name      string
	storeName string
	team      string
	aliases   []string
	inactive  bool
}

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage the chat user to Notion user directory",
}

var peopleAddCmd = &cobra.Command{
	Use:   "add CHAT_ID",
	Short: "Add or replace a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleAdd,
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active people",
	Args:  cobra.NoArgs,
	RunE:  runPeopleList,
}

var aliasCmd = &cobra.Command{
	Use:   "alias",
	Short: "Edit the names a person is also known by",
}

var aliasAddCmd = &cobra.Command{
	Use:   "add CHAT_ID ALIAS",
	Short: "Add an alias",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAlias(cmd, args, true)
	},
}

var aliasRemoveCmd = &cobra.Command{
	Use:   "remove CHAT_ID ALIAS",
	Short: "Remove an alias",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAlias(cmd, args, false)
	},
}

func init() {
	peopleAddCmd.Flags().StringVar(&personFlags.storeID, "store-id", "", "Notion user id")
	peopleAddCmd.Flags().StringVar(&personFlags.name, "name", "", "Chat display name")
	peopleAddCmd.Flags().StringVar(&personFlags.storeName, "store-name", "", "Name as shown in Notion")
	peopleAddCmd.Flags().StringVar(&personFlags.team, "team", "", "Team")
	peopleAddCmd.Flags().StringArrayVar(&personFlags.aliases, "alias", nil, "Alias (repeatable)")
	peopleAddCmd.Flags().BoolVar(&personFlags.inactive, "inactive", false, "Exclude from briefings and name matching")

	aliasCmd.AddCommand(aliasAddCmd, aliasRemoveCmd)
	peopleCmd.AddCommand(peopleAddCmd, peopleListCmd, aliasCmd)
}

func runPeopleAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	p := protocol.Person{
		ChatID:      args[0],
		StoreID:     personFlags.storeID,
		DisplayName: personFlags.name,
		StoreName:   personFlags.storeName,
		Aliases:     personFlags.aliases,
		Team:        personFlags.team,
		Active:      !personFlags.inactive,
	}
	if err := a.Memory.UpsertPerson(cmd.Context(), p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", p.ChatID, p.Name())
	return nil
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	people, err := a.Memory.ListActive(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHAT ID\tNAME\tNOTION ID\tTEAM\tALIASES")
	for _, p := range people {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ChatID, p.Name(), p.StoreID, p.Team, strings.Join(p.Aliases, ", "))
	}
	return w.Flush()
}

func runAlias(cmd *cobra.Command, args []string, add bool) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	edit := a.Memory.RemoveAlias
	if add {
		edit = a.Memory.AddAlias
	}
	aliases, err := edit(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: [%s]\n", args[0], strings.Join(aliases, ", "))
	return nil
}
