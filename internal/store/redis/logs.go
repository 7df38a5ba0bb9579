package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LogEntry is one line of the daily chat log.
type LogEntry struct {
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Line renders the entry the way /logs exports it.
func (e LogEntry) Line() string {
	user := e.Username
	if user == "" {
		user = "N/A"
	}
	return fmt.Sprintf("[%s] (%d) %s (@%s): %s",
		e.Timestamp.Format(time.RFC3339), e.UserID, e.FirstName, user, e.Message)
}

// AppendLog adds entry to the list of its day.
func (s *Store) AppendLog(ctx context.Context, entry LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	if err := s.client.RPush(ctx, LogsKey(entry.Timestamp), data).Err(); err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

// LogsByDate returns every entry logged on day, oldest first.
func (s *Store) LogsByDate(ctx context.Context, day time.Time) ([]LogEntry, error) {
	raw, err := s.client.LRange(ctx, LogsKey(day), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read logs: %w", err)
	}

	entries := make([]LogEntry, 0, len(raw))
	for _, r := range raw {
		var e LogEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			// Skip lines that are not ours
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DeleteLogsBefore removes every daily log older than cutoff and returns how
// many days were dropped.
func (s *Store) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	cutoffDay := cutoff.Truncate(24 * time.Hour)
	deleted := 0

	iter := s.client.Scan(ctx, 0, KeyPrefixLogs+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		day, err := ExtractLogDate(key)
		if err != nil || !day.Before(cutoffDay) {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return deleted, fmt.Errorf("failed to delete log key: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan logs: %w", err)
	}
	return deleted, nil
}
