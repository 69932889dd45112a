package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSchemaDefinesTables(t *testing.T) {
	for _, table := range []string{"projects", "scenes", "assets", "jobs"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema is missing table %s", table)
		}
	}
}

func TestNotFoundWrapping(t *testing.T) {
	err := fmt.Errorf("project %w", ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected ErrNotFound to be reachable")
	}
	if err.Error() != "project not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
