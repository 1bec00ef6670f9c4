package postgres

import (
	"strings"
	"testing"

	"github.com/m3rciful/orbitbot/core/config"
)

func TestCountBetween(t *testing.T) {
	files := []string{"000001_init.up.sql", "000002_replies.up.sql", "000003_x.up.sql"}
	if got := countBetween(files, 0, 2); got != 2 {
		t.Fatalf("countBetween(0,2) = %d", got)
	}
	if got := countBetween(files, 3, 3); got != 0 {
		t.Fatalf("countBetween(3,3) = %d", got)
	}
}

func TestURLEscapesCredentials(t *testing.T) {
	u := URL(config.DatabaseConfig{Host: "db", Port: "5432", User: "bot", Password: "p@ss/word", Name: "orbit", SSLMode: "disable"})
	if !strings.HasPrefix(u, "postgres://bot:p%40ss%2Fword@db:5432/orbit?") {
		t.Fatalf("URL = %s", u)
	}
	if !strings.HasSuffix(u, "sslmode=disable") {
		t.Fatalf("URL = %s", u)
	}
}

func TestListUpFilesMissingDir(t *testing.T) {
	if got := listUpFiles(t.TempDir() + "/absent"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
