package queryservice

import (
	"encoding/json"
	"fmt"

	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/persistence"
	"github.com/airenas/supaquery/internal/pkg/utils"
)

func mapJob(j *persistence.Job) (*api.Job, error) {
	res := &api.Job{ID: j.ID, Query: j.Query, Intent: utils.FromSQLStr(j.Intent), Status: j.Status,
		Done: j.Done, Total: j.Total, Error: utils.FromSQLStr(j.Error), Created: j.Created, Updated: j.Updated}
	if len(j.Result) > 0 {
		res.Result = &api.Response{}
		if err := json.Unmarshal(j.Result, res.Result); err != nil {
			return nil, fmt.Errorf("can't unmarshal result of %s: %w", j.ID, err)
		}
	}
	return res, nil
}
