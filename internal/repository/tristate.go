package repository

import (
	"database/sql"

	"babelfeed/internal/model"
)

// Tri-states persist as NULL (unknown) / 0 / 1.

func triToDB(s model.TriState) interface{} {
	switch s {
	case model.StateTrue:
		return 1
	case model.StateFalse:
		return 0
	default:
		return nil
	}
}

func triFromDB(v sql.NullInt64) model.TriState {
	if !v.Valid {
		return model.StateUnknown
	}
	if v.Int64 != 0 {
		return model.StateTrue
	}
	return model.StateFalse
}
