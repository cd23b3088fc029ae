package models

import "testing"

func TestTableNames(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{(KVEntry{}).TableName(), "kv_entries"},
		{(Paste{}).TableName(), "pastes"},
		{(Lock{}).TableName(), "locks"},
		{(QueueJob{}).TableName(), "queue_jobs"},
		{(MemoryItem{}).TableName(), "memory_items"},
		{(ContentScan{}).TableName(), "content_scans"},
		{(UsageRecord{}).TableName(), "usage_records"},
		{(UsageDaily{}).TableName(), "usage_daily"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Fatalf("unexpected table name: got %s, want %s", c.got, c.want)
		}
	}
}
