package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATA_BACKEND", "SQLITE_DB_PATH", "DATABASE_URL", "AMQP_URL",
		"AMQP_EXCHANGE", "AMQP_QUEUE", "LOG_LEVEL", "LOG_FORMAT",
		"CORS_ALLOWED_ORIGINS", "RATE_LIMIT_PER_MINUTE", "REPORT_CACHE_TTL", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func useSQLite(t *testing.T) string {
	t.Helper()
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "db", "fintrack.db")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", path)
	return path
}

// mustMoney parses an amount literal known to be valid.
func mustMoney(s string) core.Money {
	m, err := core.ParseMoney(s)
	if err != nil {
		panic("invalid money literal " + s)
	}
	return m
}

func seed(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.OpenSQLite(ctx, path)
	require.NoError(t, err)
	svc := services.New(store)
	defer svc.Close()

	pedro, err := svc.People.Create(ctx, "Pedro", 20)
	require.NoError(t, err)
	_, err = svc.People.Create(ctx, "Ana", 9)
	require.NoError(t, err)
	salary, err := svc.Categories.Create(ctx, "Salary", core.PurposeIncome)
	require.NoError(t, err)
	rent, err := svc.Categories.Create(ctx, "Rent", core.PurposeExpense)
	require.NoError(t, err)

	for _, in := range []services.NewTransaction{
		{Description: "May salary", Amount: mustMoney("5000"), Date: core.NewDate(2025, 5, 1), Type: core.TypeIncome, PersonID: pedro.ID, CategoryID: salary.ID},
		{Description: "May rent", Amount: mustMoney("1000"), Date: core.NewDate(2025, 5, 2), Type: core.TypeExpense, PersonID: pedro.ID, CategoryID: rent.ID},
	} {
		_, err := svc.Transactions.Create(ctx, in)
		require.NoError(t, err)
	}
}

func TestVersionFlag(t *testing.T) {
	clearEnv(t)
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "fintrack version dev")
}

func TestMigrateSQLite(t *testing.T) {
	path := useSQLite(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "sqlite schema is up to date\n", out)
	assert.FileExists(t, path)

	// A second run finds nothing to apply.
	_, err = execute(t, "migrate")
	require.NoError(t, err)
}

func TestMigrateMemory(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_BACKEND", "memory")

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to migrate")
}

func TestInvalidConfigFailsBeforeRunning(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_BACKEND", "sheets")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data backend 'sheets'")
}

func TestReportPeople(t *testing.T) {
	path := useSQLite(t)
	seed(t, path)

	out, err := execute(t, "report", "people")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Contains(t, string(lines[0]), "BALANCE")
	assert.Regexp(t, `Ana\s+9\s+yes\s+0\.00\s+0\.00\s+0\.00`, string(lines[1]))
	assert.Regexp(t, `Pedro\s+20\s+no\s+5000\.00\s+1000\.00\s+4000\.00`, string(lines[2]))
	assert.Regexp(t, `TOTAL\s+5000\.00\s+1000\.00\s+4000\.00`, string(lines[3]))
}

func TestReportCategoriesJSON(t *testing.T) {
	path := useSQLite(t)
	seed(t, path)

	out, err := execute(t, "report", "categories", "--json")
	require.NoError(t, err)

	var report struct {
		Categories []struct {
			Description  string  `json:"description"`
			PurposeLabel string  `json:"purposeLabel"`
			Balance      float64 `json:"balance"`
		} `json:"categories"`
		GrandBalance float64 `json:"grandBalance"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Categories, 2)
	assert.Equal(t, "Rent", report.Categories[0].Description)
	assert.Equal(t, "Expense", report.Categories[0].PurposeLabel)
	assert.Equal(t, -1000.0, report.Categories[0].Balance)
	assert.Equal(t, "Salary", report.Categories[1].Description)
	assert.Equal(t, 4000.0, report.GrandBalance)
	assert.Contains(t, out, `"grandBalance": 4000.00`)
}

func TestReportRejectsUnknownKind(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_BACKEND", "memory")

	_, err := execute(t, "report", "months")
	require.Error(t, err)
}

func TestEventsRequiresAMQP(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_BACKEND", "memory")

	_, err := execute(t, "events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMQP_URL is not set")
}
