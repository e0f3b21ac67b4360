package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed sql/pre_automigrate.sql
var preAutoMigrateSQL string

//go:embed sql/post_automigrate.sql
var postAutoMigrateSQL string

type migrationScript struct {
	name string
	sql  string
}

// autoMigrate runs the schema bootstrap, gorm's model migration, then the
// index scripts that gorm tags cannot express.
func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	if err := executeMigrationSQL(ctx, p, migrationScript{name: "pre-auto-migrate", sql: preAutoMigrateSQL}); err != nil {
		return err
	}
	if err := p.gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...); err != nil {
		return fmt.Errorf("gorm auto-migrate models: %w", err)
	}
	return executeMigrationSQL(ctx, p, migrationScript{name: "post-auto-migrate", sql: postAutoMigrateSQL})
}

func executeMigrationSQL(ctx context.Context, p *Pool, script migrationScript) error {
	trimmed := strings.TrimSpace(script.sql)
	if trimmed == "" {
		return nil
	}
	if err := p.gdb.WithContext(ctx).Exec(trimmed).Error; err != nil {
		return fmt.Errorf("execute %s SQL: %w", script.name, err)
	}
	return nil
}
