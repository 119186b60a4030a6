package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"remindd/internal/reminder"
)

// Export writes the whole collection as indented JSON. The output is the
// same shape Import accepts, and round-trips every reminder field.
func Export(ctx context.Context, st Store, w io.Writer) error {
	rs, err := st.List(ctx)
	if err != nil {
		return err
	}
	if rs == nil {
		rs = []reminder.Reminder{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rs)
}

// Import replaces the collection with the JSON array read from r.
// Unknown fields are rejected so a typo in a hand-edited export fails
// loudly instead of silently dropping configuration.
func Import(ctx context.Context, st Store, r io.Reader) (int, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var rs []reminder.Reminder
	if err := dec.Decode(&rs); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	if err := st.ReplaceAll(ctx, rs); err != nil {
		return 0, err
	}
	return len(rs), nil
}
