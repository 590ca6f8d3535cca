package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"testing/fstest"
)

func walletMigration(t *testing.T) migration {
	t.Helper()
	list, err := loadMigrations(embeddedMigrations)
	if err != nil {
		t.Fatalf("load embedded migrations: %v", err)
	}
	if len(list) == 0 || list[0].version != 1 || list[0].name != "0001_create_wallets" {
		t.Fatalf("unexpected embedded migrations %+v", list)
	}
	return list[0]
}

func TestRunMigrations(t *testing.T) {
	t.Parallel()

	m := walletMigration(t)
	steps := []step{
		expectExec(createSchemaTable),
		expectQuery(selectAppliedVersions, []string{"version"}),
		expectBegin(),
	}
	for _, stmt := range m.statements {
		steps = append(steps, expectExec(stmt))
	}
	steps = append(steps, expectExec(insertAppliedVersion), expectCommit())

	db, s := openScript(t, steps...)
	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
	recorded := s.argsAt(len(steps) - 2)
	if len(recorded) != 3 || recorded[0] != int64(1) || recorded[1] != "0001_create_wallets" {
		t.Fatalf("unexpected schema_migrations row %v", recorded)
	}
}

func TestRunMigrationsSkipsApplied(t *testing.T) {
	t.Parallel()

	db, _ := openScript(t,
		expectExec(createSchemaTable),
		expectQuery(selectAppliedVersions, []string{"version"}, []driver.Value{int64(1)}),
	)
	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestRunMigrationsRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	m := walletMigration(t)
	db, _ := openScript(t,
		expectExec(createSchemaTable),
		expectQuery(selectAppliedVersions, []string{"version"}),
		expectBegin(),
		expectExec(m.statements[0]).failing(errors.New("syntax error")),
		expectRollback(),
	)
	if err := runMigrations(context.Background(), db); err == nil {
		t.Fatal("expected migration failure")
	}
}

func TestLoadMigrations(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"0002_add_labels.sql": {Data: []byte("-- labels\nALTER TABLE wallets ADD COLUMN label VARCHAR(64);\n")},
		"0001_init.sql":       {Data: []byte("CREATE TABLE a (id INT);\nCREATE TABLE b (id INT);")},
		"0003_empty.sql":      {Data: []byte("-- nothing yet\n")},
	}
	list, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != 2 || list[0].version != 1 || list[1].version != 2 {
		t.Fatalf("unexpected order %+v", list)
	}
	if len(list[0].statements) != 2 {
		t.Fatalf("expected two statements, got %q", list[0].statements)
	}
	if got := list[1].statements[0]; got != "ALTER TABLE wallets ADD COLUMN label VARCHAR(64)" {
		t.Fatalf("comment not stripped: %q", got)
	}

	if _, err := loadMigrations(fstest.MapFS{"init.sql": {Data: []byte("SELECT 1;")}}); err == nil {
		t.Fatal("expected missing version prefix to fail")
	}
	dup := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"1_b.sql":    {Data: []byte("SELECT 2;")},
	}
	if _, err := loadMigrations(dup); err == nil {
		t.Fatal("expected duplicate version to fail")
	}
}
