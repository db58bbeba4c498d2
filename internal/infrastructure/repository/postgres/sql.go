package postgres

import (
	"database/sql"

	sonic "github.com/bytedance/sonic"
)

func isNotFound(err error) bool {
	return err == sql.ErrNoRows
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullableInt64(value int64) sql.NullInt64 {
	if value == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: value, Valid: true}
}

func nullStringToString(value sql.NullString) string {
	if !value.Valid {
		return ""
	}
	return value.String
}

func nullInt64ToInt64(value sql.NullInt64) int64 {
	if !value.Valid {
		return 0
	}
	return value.Int64
}

// encodeJSONMap renders a details map for a jsonb column. A nil map
// stores SQL NULL rather than the string "null".
func encodeJSONMap(values map[string]any) []byte {
	if len(values) == 0 {
		return nil
	}
	raw, err := sonic.Marshal(values)
	if err != nil {
		return nil
	}
	return raw
}

func decodeJSONMap(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var values map[string]any
	if err := sonic.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
