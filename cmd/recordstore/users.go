package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/deppfellow/recordstore/internal/errs"
	"github.com/deppfellow/recordstore/internal/repository"
	"github.com/deppfellow/recordstore/internal/server"
	"github.com/deppfellow/recordstore/internal/validation"
	"github.com/spf13/cobra"
)

var (
	userName    string
	userAge     int
	userNewName string
	deleteAll   bool
)

// addUserInput is the validated payload of "users add".
type addUserInput struct {
	Name string `validate:"required,max=255"`
	Age  int    `validate:"gte=0,lte=150"`
}

func (in addUserInput) Validate() error { return validation.Struct(in) }

// updateUserInput is the validated payload of "users update".
type updateUserInput struct {
	Name    string `validate:"required"`
	NewName string `validate:"omitempty,max=255"`
	Age     *int   `validate:"omitempty,gte=0,lte=150"`
}

func (in updateUserInput) Validate() error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.NewName == "" && in.Age == nil {
		return validation.CustomValidationErrors{{Field: "values", Message: "set --age or --new-name"}}
	}
	return nil
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage records in the users table",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Insert a user",
	Long: `Add inserts a user and prints it as stored.

Example:
  recordstore users add --name alice --age 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validation.Check(addUserInput{Name: userName, Age: userAge}); err != nil {
			return err
		}
		values := repository.Values{"name": userName}
		if cmd.Flags().Changed("age") {
			values["age"] = userAge
		}
		return withServer(cmd.Context(), func(ctx context.Context, s *server.Server) error {
			user, err := s.Repositories.Users.InsertOne(ctx, values)
			if err != nil {
				return err
			}
			return printUsers(cmd.OutOrStdout(), []repository.User{user})
		})
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users, optionally filtered by name and age",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := userFilter(cmd)
		return withServer(cmd.Context(), func(ctx context.Context, s *server.Server) error {
			users, err := s.Repositories.Users.FindAll(ctx, filter)
			if err != nil {
				return err
			}
			return printUsers(cmd.OutOrStdout(), users)
		})
	},
}

var usersGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one user by id",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errs.NewBadRequestError(fmt.Sprintf("invalid id %q", args[0]), true, nil, nil)
		}
		return withServer(cmd.Context(), func(ctx context.Context, s *server.Server) error {
			user, err := s.Repositories.Users.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if user == nil {
				return errs.NewNotFoundError(fmt.Sprintf("user %d not found", id), true, nil)
			}
			return printUsers(cmd.OutOrStdout(), []repository.User{*user})
		})
	},
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update users matching --name",
	Long: `Update sets --age and/or --new-name on every user matching --name.

Example:
  recordstore users update --name alice --age 31`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := updateUserInput{Name: userName, NewName: userNewName}
		if cmd.Flags().Changed("age") {
			in.Age = &userAge
		}
		if err := validation.Check(in); err != nil {
			return err
		}

		values := repository.Values{}
		if in.Age != nil {
			values["age"] = *in.Age
		}
		if userNewName != "" {
			values["name"] = userNewName
		}
		filter := repository.Filter{"name": userName}
		return withServer(cmd.Context(), func(ctx context.Context, s *server.Server) error {
			n, err := s.Repositories.Users.Update(ctx, filter, values)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d row(s) in %s\n", n, s.Repositories.Users.Table().Name)
			return nil
		})
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete users matching --name, or every user with --all",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := userFilter(cmd)
		return withServer(cmd.Context(), func(ctx context.Context, s *server.Server) error {
			n, err := s.Repositories.Users.Delete(ctx, filter, deleteAll)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d row(s) from %s\n", n, s.Repositories.Users.Table().Name)
			return nil
		})
	},
}

func init() {
	usersAddCmd.Flags().StringVar(&userName, "name", "", "user name (required)")
	usersAddCmd.Flags().IntVar(&userAge, "age", 0, "user age")

	usersListCmd.Flags().StringVar(&userName, "name", "", "filter by name")
	usersListCmd.Flags().IntVar(&userAge, "age", 0, "filter by age")

	usersUpdateCmd.Flags().StringVar(&userName, "name", "", "name of the users to update (required)")
	usersUpdateCmd.Flags().IntVar(&userAge, "age", 0, "new age")
	usersUpdateCmd.Flags().StringVar(&userNewName, "new-name", "", "new name")

	usersDeleteCmd.Flags().StringVar(&userName, "name", "", "name of the users to delete")
	usersDeleteCmd.Flags().BoolVar(&deleteAll, "all", false, "delete every user when no filter is given")

	usersCmd.AddCommand(usersAddCmd, usersListCmd, usersGetCmd, usersUpdateCmd, usersDeleteCmd)
}

// userFilter builds a filter from the flags the user actually set.
func userFilter(cmd *cobra.Command) repository.Filter {
	filter := repository.Filter{}
	if cmd.Flags().Changed("name") {
		filter["name"] = userName
	}
	if f := cmd.Flags().Lookup("age"); f != nil && f.Changed {
		filter["age"] = userAge
	}
	return filter
}

func printUsers(w io.Writer, users []repository.User) error {
	if flagJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAGE\tCREATED\tUPDATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			u.ID, u.Name, u.Age,
			u.CreatedAt.Format("2006-01-02 15:04:05"),
			u.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
