package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"estate-leads/internal/config"
	"estate-leads/internal/database"
)

// 应用 scripts/schema.sql（或指定的迁移文件）到配置的数据库
func main() {
	schemaFile := "scripts/schema.sql"
	if len(os.Args) > 1 {
		schemaFile = os.Args[1]
	}

	sqlContent, err := os.ReadFile(schemaFile)
	if err != nil {
		log.Fatalf("Failed to read schema file: %v", err)
	}

	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	// Split SQL by semicolon and execute each statement
	statements := strings.Split(string(sqlContent), ";")
	executed := 0
	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Failed to execute statement %d: %v\nStatement: %s", i+1, err, truncate(stmt, 100))
		}
		executed++
	}

	fmt.Printf("Schema applied: %d statements executed\n", executed)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
