package objectstore

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// StreamRecipients reads the CSV at key and returns the deduplicated,
// lowercased, trimmed set of email addresses (§6: Recipient CSV). The
// header's email column is matched case-insensitively against
// email|Email|EMAIL; all other columns are ignored.
func StreamRecipients(ctx context.Context, store Store, key string) ([]string, error) {
	r, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	emailCol := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "email") {
			emailCol = i
			break
		}
	}
	if emailCol == -1 {
		return nil, errors.New("objectstore: no email column found in header")
	}

	seen := make(map[string]struct{})
	var out []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if emailCol >= len(record) {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(record[emailCol]))
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out, nil
}

// maxUnsubTimestamp and minUnsubTimestamp bound valid unsubscribe
// timestamps (§6): [0, 9999999999] seconds.
const (
	minUnsubTimestamp int64 = 0
	maxUnsubTimestamp int64 = 9999999999
)

// StreamUnsubscribes reads the newline-separated `email,timestamp` file at
// key (§6) and returns a set keyed by lowercased email. A missing object
// is not an error — it yields an empty set (§4.2: "Missing unsubscribe
// object ⇒ empty set").
func StreamUnsubscribes(ctx context.Context, store Store, key string) (map[string]time.Time, error) {
	r, err := store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return map[string]time.Time{}, nil
		}
		return nil, err
	}
	defer r.Close()

	out := make(map[string]time.Time)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		email := strings.ToLower(strings.TrimSpace(parts[0]))
		if email == "" {
			continue
		}

		ts := time.Now()
		if len(parts) == 2 {
			if secs, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64); err == nil {
				if secs >= minUnsubTimestamp && secs <= maxUnsubTimestamp {
					ts = time.Unix(secs, 0).UTC()
				}
			}
		}
		out[email] = ts
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
