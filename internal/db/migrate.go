package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

var (
	//go:embed sql/pre_automigrate.sql
	schemaBootstrapSQL string

	//go:embed sql/post_automigrate.sql
	schemaConstraintsSQL string
)

type migrationStep struct {
	name string
	run  func(ctx context.Context) error
}

// autoMigrate creates the news schema, lets gorm reconcile the tables, then
// adds the partial indexes and foreign keys gorm tags cannot express. Every
// step is idempotent.
func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return errPoolNotReady
	}

	steps := []migrationStep{
		{name: "bootstrap schema", run: p.rawMigration(schemaBootstrapSQL)},
		{name: "reconcile tables", run: func(ctx context.Context) error {
			return p.gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...)
		}},
		{name: "apply indexes and constraints", run: p.rawMigration(schemaConstraintsSQL)},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

func (p *Pool) rawMigration(sqlText string) func(context.Context) error {
	statement := strings.TrimSpace(sqlText)
	return func(ctx context.Context) error {
		if statement == "" {
			return nil
		}
		return p.gdb.WithContext(ctx).Exec(statement).Error
	}
}
