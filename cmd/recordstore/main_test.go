package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deppfellow/recordstore/internal/errs"
	"github.com/deppfellow/recordstore/internal/repository"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	t.Run("Should succeed without an error", func(t *testing.T) {
		assert.Equal(t, exitSuccess, exitCode(nil))
	})

	t.Run("Should treat invalid arguments as user errors", func(t *testing.T) {
		err := errs.NewInvalidArgument("delete", "users", "refusing to delete without a filter")
		assert.Equal(t, exitUserError, exitCode(err))
		assert.Equal(t, "BAD_REQUEST: refusing to delete without a filter", describeError(err))
	})

	t.Run("Should treat unique violations as user errors", func(t *testing.T) {
		err := &errs.StoreError{
			Kind:  errs.ErrConstraintViolation,
			Op:    "insert_one",
			Table: "users",
			Err: &pgconn.PgError{
				Code:           "23505",
				TableName:      "users",
				ConstraintName: "users_name_key",
			},
		}
		assert.Equal(t, exitUserError, exitCode(err))
		assert.Equal(t, "USER_ALREADY_EXISTS: A User with this Name already exists", describeError(err))
	})

	t.Run("Should treat storage failures as system errors", func(t *testing.T) {
		err := &errs.StoreError{Kind: errs.ErrStorage, Op: "find_all", Table: "users", Err: errors.New("connection refused")}
		assert.Equal(t, exitSysError, exitCode(err))
		assert.Contains(t, describeError(err), "INTERNAL_SERVER_ERROR: ")
		assert.Contains(t, describeError(err), "connection refused")
	})

	t.Run("Should print unclassified errors as they are", func(t *testing.T) {
		err := errors.New(`required flag(s) "name" not set`)
		assert.Equal(t, exitSysError, exitCode(err))
		assert.Equal(t, err.Error(), describeError(err))
	})

	t.Run("Should treat command line mistakes as user errors", func(t *testing.T) {
		err := &usageError{err: errors.New(`unknown flag: --nmae`)}
		assert.Equal(t, exitUserError, exitCode(err))
		assert.Equal(t, "unknown flag: --nmae", describeError(err))
	})

	t.Run("Should report missing records as user errors", func(t *testing.T) {
		err := errs.NewNotFoundError("user 7 not found", true, nil)
		assert.Equal(t, exitUserError, exitCode(err))
		assert.Equal(t, "NOT_FOUND: user 7 not found", describeError(err))
	})
}

func TestUserFilter(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().StringVar(&userName, "name", "", "")
		cmd.Flags().IntVar(&userAge, "age", 0, "")
		return cmd
	}

	t.Run("Should be empty when no flag is set", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Parse(nil))
		assert.Empty(t, userFilter(cmd))
	})

	t.Run("Should include only the flags that were set", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Parse([]string{"--age", "0"}))
		assert.Equal(t, repository.Filter{"age": 0}, userFilter(cmd))
	})

	t.Run("Should skip age when the command has no such flag", func(t *testing.T) {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().StringVar(&userName, "name", "", "")
		require.NoError(t, cmd.Flags().Parse([]string{"--name", "alice"}))
		assert.Equal(t, repository.Filter{"name": "alice"}, userFilter(cmd))
	})
}

func TestPrintUsers(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	users := []repository.User{{ID: 1, Name: "alice", Age: 30, CreatedAt: ts, UpdatedAt: ts}}

	t.Run("Should print a table", func(t *testing.T) {
		flagJSON = false
		var buf bytes.Buffer
		require.NoError(t, printUsers(&buf, users))
		out := buf.String()
		assert.Contains(t, out, "NAME")
		assert.Contains(t, out, "alice")
		assert.Contains(t, out, "2024-05-01 12:00:00")
	})

	t.Run("Should print JSON", func(t *testing.T) {
		flagJSON = true
		t.Cleanup(func() { flagJSON = false })
		var buf bytes.Buffer
		require.NoError(t, printUsers(&buf, users))
		assert.Contains(t, buf.String(), `"name": "alice"`)
	})
}

func TestUserInputValidation(t *testing.T) {
	t.Run("Should reject a negative age on add", func(t *testing.T) {
		err := addUserInput{Name: "alice", Age: -3}.Validate()
		assert.Error(t, err)
	})

	t.Run("Should require something to update", func(t *testing.T) {
		err := updateUserInput{Name: "alice"}.Validate()
		assert.Error(t, err)
	})

	t.Run("Should accept a new age of zero", func(t *testing.T) {
		age := 0
		assert.NoError(t, updateUserInput{Name: "alice", Age: &age}.Validate())
	})
}

// execute runs the root command with args, capturing its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandLineUsage(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{name: "unknown command", args: []string{"bogus"}},
		{name: "unknown flag", args: []string{"users", "list", "--bogus"}},
		{name: "malformed flag value", args: []string{"users", "add", "--age", "old"}},
		{name: "missing argument", args: []string{"users", "get"}},
		{name: "extra argument", args: []string{"health", "now"}},
	}
	for _, tc := range cases {
		t.Run("Should exit as a user error on "+tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			require.Error(t, err)

			var usageErr *usageError
			assert.ErrorAs(t, err, &usageErr)
			assert.Equal(t, exitUserError, exitCode(err))
		})
	}

	t.Run("Should print help for a command group", func(t *testing.T) {
		out, err := execute(t, "users")
		require.NoError(t, err)
		assert.Contains(t, out, "delete")
		assert.Contains(t, out, "list")
	})
}

type fakeChecker struct {
	err error
}

func (f fakeChecker) HealthCheck(context.Context) error {
	return f.err
}

func TestRunHealth(t *testing.T) {
	t.Run("Should print ok when the database answers", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, runHealth(context.Background(), fakeChecker{}, &buf))
		assert.Equal(t, "ok\n", buf.String())
	})

	t.Run("Should return the ping failure", func(t *testing.T) {
		cause := errors.New("database health check: connection refused")
		var buf bytes.Buffer
		err := runHealth(context.Background(), fakeChecker{err: cause}, &buf)
		assert.ErrorIs(t, err, cause)
		assert.Empty(t, buf.String())
		assert.Equal(t, exitSysError, exitCode(err))
	})

	t.Run("Should be registered on the root command", func(t *testing.T) {
		cmd, _, err := rootCmd.Find([]string{"health"})
		require.NoError(t, err)
		assert.Same(t, healthCmd, cmd)
	})
}
