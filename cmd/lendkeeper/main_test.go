package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lendkeeper/internal/bulk"
	"lendkeeper/internal/inventory"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T, extra string) *cliTestEnv {
	t.Helper()
	t.Setenv("LENDKEEPER_DATA_DIR", "")
	t.Setenv("LENDKEEPER_LOG_LEVEL", "")

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf("[paths]\ndata_dir = %q\nlog_dir = %q\n%s\n[logging]\nlevel = \"error\"\n",
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		extra,
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath}
}

func (env *cliTestEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(env.baseDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--actor", "librarian"}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, _, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestCLICatalogAndLending(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out := mustRunCLI(t, env, "catalog", "add", "book:B-100", "--title", "Algebra", "--subject", "Mathematics", "--class-level", "Form 1")
	if !strings.Contains(out, "Registered B-100") {
		t.Fatalf("unexpected add output: %q", out)
	}

	out = mustRunCLI(t, env, "catalog", "list")
	if !strings.Contains(out, "B-100") || !strings.Contains(out, "Algebra") {
		t.Fatalf("catalog list missing resource: %q", out)
	}

	out = mustRunCLI(t, env, "lend", "borrow", "B-100", "student:S1")
	if !strings.Contains(out, "Lent B-100 to student:S1") {
		t.Fatalf("unexpected borrow output: %q", out)
	}

	_, _, err := runCLI(t, []string{"lend", "borrow", "B-100", "student:S2"}, env.configPath)
	if !errors.Is(err, inventory.ErrResourceUnavailable) {
		t.Fatalf("expected unavailable on second borrow, got %v", err)
	}
	if code := exitCode(err); code != exitConflict {
		t.Fatalf("expected exit code %d, got %d", exitConflict, code)
	}

	out = mustRunCLI(t, env, "catalog", "list", "--borrowed")
	if !strings.Contains(out, "B-100") {
		t.Fatalf("borrowed listing missing resource: %q", out)
	}

	out = mustRunCLI(t, env, "lend", "return", "B-100", "--condition", "damaged", "--borrower", "student:S1")
	if !strings.Contains(out, "fine 5.00") {
		t.Fatalf("expected damaged fine, got %q", out)
	}

	_, _, err = runCLI(t, []string{"lend", "return", "B-100", "--condition", "good"}, env.configPath)
	if !errors.Is(err, inventory.ErrAlreadyReturned) {
		t.Fatalf("expected already returned, got %v", err)
	}

	out = mustRunCLI(t, env, "--json", "lend", "history", "B-100")
	var records []inventory.LendingRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode history: %v (%q)", err, out)
	}
	if len(records) != 1 || records[0].Open() || records[0].FineMinor != 500 {
		t.Fatalf("unexpected history: %+v", records)
	}
	if records[0].LentBy != "librarian" || records[0].ReturnedBy != "librarian" {
		t.Fatalf("expected actor recorded, got lent_by=%q returned_by=%q", records[0].LentBy, records[0].ReturnedBy)
	}
}

func TestCLICatalogEditAndRemove(t *testing.T) {
	env := setupCLITestEnv(t, "")
	mustRunCLI(t, env, "catalog", "add", "DESK-01", "--type", "furniture", "--furniture-category", "Desk")

	_, _, err := runCLI(t, []string{"catalog", "edit", "DESK-01"}, env.configPath)
	if inventory.KindOf(err) != inventory.KindValidation {
		t.Fatalf("expected validation error for empty edit, got %v", err)
	}

	mustRunCLI(t, env, "catalog", "edit", "DESK-01", "--condition", "fair")
	out := mustRunCLI(t, env, "catalog", "show", "DESK-01")
	if !strings.Contains(out, "Fair") || !strings.Contains(out, "furniture_category=desk") {
		t.Fatalf("edit not reflected: %q", out)
	}

	mustRunCLI(t, env, "lend", "borrow", "DESK-01", "teacher:T1")
	_, _, err = runCLI(t, []string{"catalog", "remove", "DESK-01"}, env.configPath)
	if !errors.Is(err, inventory.ErrResourceHasOpenLoan) {
		t.Fatalf("expected open loan refusal, got %v", err)
	}
	mustRunCLI(t, env, "catalog", "remove", "DESK-01", "--force")

	_, _, err = runCLI(t, []string{"catalog", "show", "DESK-01"}, env.configPath)
	if code := exitCode(err); code != exitNotFound {
		t.Fatalf("expected not found exit code, got %d (%v)", code, err)
	}
}

func TestCLIImportAndBulkBorrow(t *testing.T) {
	env := setupCLITestEnv(t, "")
	importPath := env.writeFile(t, "books.yaml", `resources:
  - id: B-1
    title: Biology
    classification:
      subject: Biology
  - label: F1/Chemistry/Form1/30/2024
  - id: B-1
`)
	_, _, err := runCLI(t, []string{"catalog", "import", importPath}, env.configPath)
	if code := exitCode(err); code != exitPartialBulk {
		t.Fatalf("expected partial failure for duplicate row, got %d (%v)", code, err)
	}

	out := mustRunCLI(t, env, "catalog", "counts", "--by", "subject")
	if !strings.Contains(out, "biology") || !strings.Contains(out, "chemistry") {
		t.Fatalf("imported tags missing: %q", out)
	}

	batchPath := env.writeFile(t, "batch.yaml", `items:
  - resource: B-1
    borrower: student:S1
  - resource: F1/Chemistry/Form1/30/2024
    borrower: student:S2
    days: 3
  - resource: B-404
    borrower: student:S3
`)
	out, _, err = runCLI(t, []string{"bulk", "borrow", batchPath}, env.configPath)
	if !errors.Is(err, inventory.ErrPartialBulkFailure) {
		t.Fatalf("expected partial bulk failure, got %v", err)
	}
	if !strings.Contains(out, "3 attempted, 2 succeeded, 1 failed, 0 skipped") {
		t.Fatalf("unexpected batch summary: %q", out)
	}

	out = mustRunCLI(t, env, "--json", "bulk", "list")
	var batches []bulk.Result
	if err := json.Unmarshal([]byte(out), &batches); err != nil {
		t.Fatalf("decode batches: %v", err)
	}
	if len(batches) != 1 || batches[0].Initiator != "librarian" {
		t.Fatalf("unexpected batches: %+v", batches)
	}

	out = mustRunCLI(t, env, "bulk", "show", batches[0].BatchID)
	if !strings.Contains(out, string(inventory.KindResourceNotFound)) {
		t.Fatalf("batch detail missing failure kind: %q", out)
	}

	_, _, err = runCLI(t, []string{"bulk", "show", "missing"}, env.configPath)
	if code := exitCode(err); code != exitNotFound {
		t.Fatalf("expected not found for unknown batch, got %d", code)
	}
}

func TestCLIImportedIDsAreAddressable(t *testing.T) {
	env := setupCLITestEnv(t, "")
	importPath := env.writeFile(t, "ids.yaml", `resources:
  - id: BK_001
  - id: LIB.42
  - id: F1/CHR/B/004
`)
	out := mustRunCLI(t, env, "catalog", "import", importPath)
	if !strings.Contains(out, "Registered 3 of 3 resources") {
		t.Fatalf("unexpected import output: %q", out)
	}

	out = mustRunCLI(t, env, "lend", "borrow", "BK_001", "student:S1")
	if !strings.Contains(out, "Lent BK_001 to student:S1") {
		t.Fatalf("unexpected borrow output: %q", out)
	}
	mustRunCLI(t, env, "lend", "return", "book:BK_001", "--condition", "good")
	mustRunCLI(t, env, "catalog", "show", "LIB.42")
	mustRunCLI(t, env, "lend", "borrow", "F1/CHR/B/4", "teacher:T1")

	out = mustRunCLI(t, env, "--json", "catalog", "show", "F1/CHR/B/004")
	var detail resourceDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode resource: %v", err)
	}
	if detail.Resource.Type != inventory.TypeFurniture || detail.Resource.Available || detail.OpenLoan == nil {
		t.Fatalf("expected a borrowed furniture item, got %+v", detail)
	}
	mustRunCLI(t, env, "catalog", "remove", "LIB.42")
}

func TestCLIFurnitureSeries(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out := mustRunCLI(t, env, "catalog", "furniture", "lkr", "R", "--form", "F2", "--count", "2")
	if !strings.Contains(out, "F2/LKR/R/001 registered") || !strings.Contains(out, "F2/LKR/R/002 registered") {
		t.Fatalf("unexpected furniture output: %q", out)
	}
	out = mustRunCLI(t, env, "catalog", "furniture", "LKR", "R", "--form", "F2")
	if !strings.Contains(out, "F2/LKR/R/003 registered") {
		t.Fatalf("expected series to continue, got %q", out)
	}

	out = mustRunCLI(t, env, "catalog", "counts", "--by", "furniture_category")
	if !strings.Contains(out, "locker") {
		t.Fatalf("expected locker tag in counts: %q", out)
	}

	_, _, err := runCLI(t, []string{"catalog", "furniture", "DESK", "R"}, env.configPath)
	if code := exitCode(err); code != exitInvalid {
		t.Fatalf("expected validation exit code for unknown kind, got %d (%v)", code, err)
	}
}

func TestCLIOverdueAndPurge(t *testing.T) {
	env := setupCLITestEnv(t, "")
	mustRunCLI(t, env, "catalog", "add", "B-200")
	mustRunCLI(t, env, "catalog", "add", "B-201")
	mustRunCLI(t, env, "lend", "borrow", "B-200", "student:S1", "--days", "1")

	out := mustRunCLI(t, env, "overdue", "list")
	if !strings.Contains(out, "No overdue loans") {
		t.Fatalf("nothing should be overdue yet: %q", out)
	}

	out = mustRunCLI(t, env, "overdue", "list", "--as-of", "2099-01-01")
	if !strings.Contains(out, "B-200") {
		t.Fatalf("expected overdue loan: %q", out)
	}

	out = mustRunCLI(t, env, "--json", "overdue", "buckets", "--as-of", "2099-01-01")
	var counts []struct {
		Label string `json:"label"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &counts); err != nil {
		t.Fatalf("decode buckets: %v", err)
	}
	if len(counts) != 3 || counts[2].Label != ">30" || counts[2].Count != 1 {
		t.Fatalf("unexpected buckets: %+v", counts)
	}

	_, _, err := runCLI(t, []string{"purge"}, env.configPath)
	if code := exitCode(err); code != exitInvalid {
		t.Fatalf("expected validation exit code, got %d (%v)", code, err)
	}

	mustRunCLI(t, env, "lend", "return", "B-200", "--condition", "good")
	out = mustRunCLI(t, env, "purge", "--before", "2099-01-01")
	if !strings.Contains(out, "Purged 1 lending records") {
		t.Fatalf("unexpected purge output: %q", out)
	}
}

func TestCLIReportsWithRoster(t *testing.T) {
	base := t.TempDir()
	rosterPath := filepath.Join(base, "roster.yaml")
	roster := `cohorts:
  - id: form1
    name: Form 1
    students:
      - id: S1
        name: Amina
      - id: S2
        name: Baraka
teachers:
  - id: T1
    name: Mr Otieno
`
	if err := os.WriteFile(rosterPath, []byte(roster), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	env := setupCLITestEnv(t, fmt.Sprintf("roster_file = %q\n[ledger]\nvalidate_borrowers = true\n", rosterPath))

	mustRunCLI(t, env, "catalog", "add", "B-300", "--subject", "History")
	mustRunCLI(t, env, "catalog", "add", "B-301", "--subject", "Physics")
	mustRunCLI(t, env, "lend", "borrow", "B-300", "student:S1")

	_, _, err := runCLI(t, []string{"lend", "borrow", "B-301", "student:S9"}, env.configPath)
	if inventory.KindOf(err) != inventory.KindValidation {
		t.Fatalf("expected unknown borrower rejection, got %v", err)
	}

	out := mustRunCLI(t, env, "--json", "report", "participation", "form1")
	var rows []struct {
		CohortID     string `json:"cohort_id"`
		Members      int    `json:"members"`
		Participants int    `json:"participants"`
	}
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode participation: %v", err)
	}
	if len(rows) != 1 || rows[0].Members != 2 || rows[0].Participants != 1 {
		t.Fatalf("unexpected participation: %+v", rows)
	}

	out = mustRunCLI(t, env, "report", "nonparticipants", "form1")
	if !strings.Contains(out, "student:S2") || !strings.Contains(out, "Baraka") {
		t.Fatalf("expected S2 as non-participant: %q", out)
	}

	out = mustRunCLI(t, env, "report", "matrix", "subject")
	if !strings.Contains(out, "form1") || !strings.Contains(out, "history") {
		t.Fatalf("unexpected matrix: %q", out)
	}

	out = mustRunCLI(t, env, "lend", "borrower", "student:S1")
	if !strings.Contains(out, "Amina") || !strings.Contains(out, "B-300") {
		t.Fatalf("unexpected borrower summary: %q", out)
	}

	out = mustRunCLI(t, env, "report", "inventory")
	if !strings.Contains(out, "Utilization: 50.0%") {
		t.Fatalf("unexpected inventory report: %q", out)
	}
}

func TestCLIConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestCLIDoctor(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out := mustRunCLI(t, env, "doctor")
	if !strings.Contains(out, "Data directory") || !strings.Contains(out, "Database") {
		t.Fatalf("unexpected doctor output: %q", out)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"validation", &inventory.Error{Kind: inventory.KindValidation}, exitInvalid},
		{"not found", &inventory.Error{Kind: inventory.KindResourceNotFound}, exitNotFound},
		{"record not found", &inventory.Error{Kind: inventory.KindRecordNotFound}, exitNotFound},
		{"unavailable", fmt.Errorf("wrapped: %w", &inventory.Error{Kind: inventory.KindResourceUnavailable}), exitConflict},
		{"mismatch", &inventory.Error{Kind: inventory.KindBorrowerMismatch}, exitConflict},
		{"partial", &inventory.Error{Kind: inventory.KindPartialBulkFailure}, exitPartialBulk},
		{"storage", &inventory.Error{Kind: inventory.KindStorageUnavailable}, exitStorageBusy},
		{"batch", fmt.Errorf("%w: x", bulk.ErrBatchNotFound), exitNotFound},
		{"cancelled", context.Canceled, exitCancelled},
		{"other", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
