package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			todos, err := a.controller.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			return a.printTodos(cmd.OutOrStdout(), todos)
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <title...>",
		Short: "Create a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := a.controller.Create(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.printTodos(cmd.OutOrStdout(), []model.Todo{*created})
		},
	}
}

func (a *app) toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip the completed flag of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, err := a.controller.ListAll(cmd.Context()); err != nil {
				return err
			}
			e, ok := a.controller.Store().Get(id)
			if !ok {
				return fmt.Errorf("no todo with id %s", id)
			}
			if err := a.controller.ToggleCompleted(cmd.Context(), id, e.Value.IsCompleted); err != nil {
				return err
			}
			e, _ = a.controller.Store().Get(id)
			return a.printTodos(cmd.OutOrStdout(), []model.Todo{e.Value})
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a todo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.controller.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if !a.jsonOutput {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			}
			return nil
		},
	}
}

func (a *app) sessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the server's session document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.client.Session(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, session)
			}
			account, _ := session.PrimaryAccount(model.CapabilityTodo)
			fmt.Fprintf(out, "Username:        %s\n", session.Username)
			fmt.Fprintf(out, "API URL:         %s\n", session.APIURL)
			fmt.Fprintf(out, "Primary account: %s\n", account)
			fmt.Fprintf(out, "State:           %s\n", session.State)
			fmt.Fprintf(out, "Strategy:        %s\n", a.client.Strategy().Name())
			return nil
		},
	}
}

func (a *app) printTodos(w io.Writer, todos []model.Todo) error {
	if a.jsonOutput {
		return writeJSON(w, todos)
	}
	if len(todos) == 0 {
		fmt.Fprintln(w, "No todos")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range todos {
		mark := "[ ]"
		if t.IsCompleted {
			mark = "[x]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", mark, t.ID, t.Title)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
