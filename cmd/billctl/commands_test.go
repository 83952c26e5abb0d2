package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"migrate", "run-job", "check-recurring"})
}

func TestJobArg(t *testing.T) {
	cmd := runJobCmd()

	assert.NoError(t, jobArg(cmd, []string{"BILL_DUE"}))
	assert.NoError(t, jobArg(cmd, []string{"weekly_summary"}))
	assert.ErrorIs(t, jobArg(cmd, []string{"DAILY"}), domain.ErrInvalidNotificationType)
	assert.Error(t, jobArg(cmd, nil))
	assert.Error(t, jobArg(cmd, []string{"BILL_DUE", "BILL_OVERDUE"}))
}

func TestRunJob_RejectsUnknownJobBeforeConnecting(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	root := rootCmd()
	root.SetArgs([]string{"run-job", "YEARLY"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidNotificationType)
}

func TestCheckRecurring_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	root := rootCmd()
	root.SetArgs([]string{"check-recurring", "--owner", "3"})
	root.SetOut(&bytes.Buffer{})

	assert.EqualError(t, root.Execute(), "DATABASE_URL is required")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, &domain.GenerationResult{TemplatesChecked: 2, Generated: 5}))
	assert.JSONEq(t, `{"templatesChecked": 2, "generated": 5}`, buf.String())
}
