package persistence

import (
	"database/sql"
	"time"
)

type (

	//RefundRequest table
	RefundRequest struct {
		ID                    int64
		Name                  sql.NullString
		Amount                *float64
		ImageURL              sql.NullString
		AudioURL              sql.NullString
		Summary               sql.NullString
		Status                sql.NullString
		Stage                 sql.NullString
		ProcessingStarted     *time.Time
		ProcessingCompleted   *time.Time
		ProcessingTimeSeconds *float64
		ErrorMessage          sql.NullString
		LastUpdated           *time.Time
	}

	//Employee table
	Employee struct {
		ID     int64
		Name   string
		Age    float64
		Salary float64
	}

	//Job is an asynchronously executed query
	Job struct {
		ID      string
		Query   string
		Intent  sql.NullString
		Email   sql.NullString
		Status  string
		Done    int32
		Total   int32
		Result  []byte
		Error   sql.NullString
		Created time.Time
		Updated time.Time
		Version int
	}
)
