package testutil

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"arrears/internal/infrastructure/mysql"
)

// SetupTestDB configura una base de datos de prueba
// Espera que exista una BD MySQL en localhost:3306 llamada 'arrears_test'
func SetupTestDB(t *testing.T) *sql.DB {
	dsn := "root:@tcp(localhost:3306)/arrears_test?parseTime=true"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// SetupTestTables aplica las migraciones sobre la BD de prueba
func SetupTestTables(t *testing.T, db *sql.DB) {
	if err := mysql.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
}

// CleanupTestDB limpia la BD de prueba
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	tables := []string{"OrderItems", "OrderOutbox", "Orders"}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}
