package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `
biller:
  name: Jane Contractor
  email: jane@example.com
  address:
    street: 1 Main St
    city: Springfield
    state: IL
    zip_code: "62701"
defaults:
  tax_rate: 0.08
clients:
  madrona:
    name: Madrona Labs
    prefix: madrona
  acme:
    name: Acme Corp
    prefix: acme
hourly_rates:
  default: 120
  development: 150
database:
  enabled: false
`

const testExport = `[
  {"id": 1, "start": "20240105T090000Z", "end": "20240105T120000Z", "tags": ["madrona", "development"], "annotation": "API work"},
  {"id": 2, "start": "20240106T090000Z", "end": "20240106T100000Z", "tags": ["acme", "design"]}
]`

func setup(t *testing.T) (cfgPath, exportPath string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "config.yaml")
	exportPath = filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o644))
	require.NoError(t, os.WriteFile(exportPath, []byte(testExport), 0o644))
	return cfgPath, exportPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerate_DryRunFromFile(t *testing.T) {
	cfgPath, exportPath := setup(t)

	out, err := execute(t, "generate", "--config", cfgPath,
		"--start-date", "2024-01-01", "--end-date", "2024-01-31",
		"--client", "madrona", "--input", exportPath, "--dry-run")
	require.NoError(t, err)
	require.Contains(t, out, "Invoice madrona-")
	require.Contains(t, out, "API work")
	require.Contains(t, out, "$450.00")
	require.Contains(t, out, "$36.00")
	require.Contains(t, out, "$486.00")
	require.NotContains(t, out, "Acme Corp")
	require.NotContains(t, out, "wrote ")
}

func TestGenerate_TexOutput(t *testing.T) {
	cfgPath, exportPath := setup(t)
	outDir := t.TempDir()

	out, err := execute(t, "generate", "--config", cfgPath,
		"--start-date", "2024-01-01", "--end-date", "2024-01-31",
		"--client", "madrona", "--client", "acme",
		"--input", exportPath, "--output", outDir, "--output-format", "tex", "--no-ledger")
	require.NoError(t, err)
	require.Contains(t, out, "wrote ")

	madrona, err := filepath.Glob(filepath.Join(outDir, "madrona", "2024", "01", "madrona-*.tex"))
	require.NoError(t, err)
	require.Len(t, madrona, 1)
	src, err := os.ReadFile(madrona[0])
	require.NoError(t, err)
	require.Contains(t, string(src), "486.00")

	acme, err := filepath.Glob(filepath.Join(outDir, "acme", "2024", "01", "acme-*.tex"))
	require.NoError(t, err)
	require.Len(t, acme, 1)
}

func TestGenerate_UnknownClient(t *testing.T) {
	cfgPath, exportPath := setup(t)

	_, err := execute(t, "generate", "--config", cfgPath,
		"--start-date", "2024-01-01", "--end-date", "2024-01-31",
		"--client", "madrna", "--input", exportPath, "--dry-run")
	require.ErrorContains(t, err, `unknown client "madrna"`)
	require.ErrorContains(t, err, `did you mean "madrona"?`)
}

func TestGenerate_BadTaxRate(t *testing.T) {
	cfgPath, exportPath := setup(t)

	_, err := execute(t, "generate", "--config", cfgPath,
		"--start-date", "2024-01-01", "--end-date", "2024-01-31",
		"--client", "madrona", "--input", exportPath, "--tax-rate=-0.1", "--dry-run")
	require.ErrorContains(t, err, "must not be negative")
}

func TestInitAndClients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice", "config.yaml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, "wrote default config")
	require.FileExists(t, path)

	_, err = execute(t, "init", "--config", path)
	require.ErrorContains(t, err, "already exists")

	out, err = execute(t, "clients", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, "no clients configured")

	cfgPath, _ := setup(t)
	out, err = execute(t, "clients", "--config", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, "Madrona Labs")
	require.Contains(t, out, "Acme Corp")
}

func TestResetLedger_RequiresConfirmation(t *testing.T) {
	cfgPath, _ := setup(t)

	_, err := execute(t, "reset-ledger", "--config", cfgPath)
	require.ErrorContains(t, err, "--yes")
}
