package synclog

import (
	"testing"
	"time"
)

func TestEntryValidate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	valid := Entry{
		Kind:           KindBoxscore,
		GameID:         "0022300001",
		Status:         StatusSuccess,
		ItemsProcessed: 3,
		ItemsSucceeded: 3,
		StartTime:      now,
		EndTime:        now,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}

	missingKind := valid
	missingKind.Kind = ""
	if err := missingKind.Validate(); err == nil {
		t.Fatal("expected error for missing kind")
	}

	missingStatus := valid
	missingStatus.Status = ""
	if err := missingStatus.Validate(); err == nil {
		t.Fatal("expected error for missing status")
	}

	inverted := valid
	inverted.ItemsSucceeded = 5
	inverted.ItemsProcessed = 3
	if err := inverted.Validate(); err == nil {
		t.Fatal("expected error when succeeded exceeds processed")
	}
}

func TestEntryIsNoData(t *testing.T) {
	t.Parallel()

	if (Entry{}).IsNoData() {
		t.Fatal("entry without details must not be no-data")
	}
	if (Entry{Details: map[string]any{DetailNoData: false}}).IsNoData() {
		t.Fatal("false marker must not be no-data")
	}
	if !(Entry{Details: map[string]any{DetailNoData: true}}).IsNoData() {
		t.Fatal("true marker must be no-data")
	}
	if (Entry{Details: map[string]any{DetailNoData: "true"}}).IsNoData() {
		t.Fatal("non-bool marker must not be no-data")
	}
}
