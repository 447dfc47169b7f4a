package smoke

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/internal/domain/scoring"
	"github.com/okian/cachegate/internal/domain/types"
)

// Check is one request of the plan and how to judge its reply.
type Check struct {
	Name     string
	Path     string
	Validate func(status int, contentType string, body []byte) error
}

// Plan lists the checks for org.
func Plan(org string, topN int) []Check {
	base := "/orgs/" + org
	checks := []Check{
		{Name: "health", Path: "/healthcheck", Validate: expectText("Live")},
		{Name: "root", Path: "/", Validate: expectObject},
		{Name: "org", Path: base, Validate: expectObject},
		{Name: "members", Path: base + "/members", Validate: expectArray},
		{Name: "repos", Path: base + "/repos", Validate: expectArray},
		{Name: "repos_page", Path: base + "/repos?page=2", Validate: expectArray},
		{Name: "proxy", Path: "/rate_limit", Validate: expectOK},
	}
	for _, v := range scoring.Views {
		checks = append(checks, Check{
			Name:     "view_" + v.Name,
			Path:     scoring.RankPrefix + strconv.Itoa(topN) + "/" + v.Name,
			Validate: expectRanking(topN),
		})
	}
	return checks
}

func failf(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeSchemaFailed, format, args...)
}

func expectOK(status int, _ string, _ []byte) error {
	if status != http.StatusOK {
		return failf("status %d", status)
	}
	return nil
}

func expectText(want string) func(int, string, []byte) error {
	return func(status int, _ string, body []byte) error {
		if err := expectOK(status, "", nil); err != nil {
			return err
		}
		if string(body) != want {
			return failf("body %q, want %q", body, want)
		}
		return nil
	}
}

func expectObject(status int, _ string, body []byte) error {
	if err := expectOK(status, "", nil); err != nil {
		return err
	}
	var v map[string]json.RawMessage
	if err := json.Unmarshal(body, &v); err != nil {
		return failf("not a JSON object: %v", err)
	}
	return nil
}

func expectArray(status int, _ string, body []byte) error {
	if err := expectOK(status, "", nil); err != nil {
		return err
	}
	var v []json.RawMessage
	if err := json.Unmarshal(body, &v); err != nil {
		return failf("not a JSON array: %v", err)
	}
	return nil
}

// expectRanking accepts the not-ready notice or at most n rows ordered by
// score ascending, equal scores by name descending.
func expectRanking(n int) func(int, string, []byte) error {
	return func(status int, contentType string, body []byte) error {
		if err := expectOK(status, "", nil); err != nil {
			return err
		}
		if strings.HasPrefix(contentType, "text/plain") {
			if string(body) != model.NotReadyMessage {
				return failf("unexpected notice %q", body)
			}
			return nil
		}
		var rows []types.Row
		if err := json.Unmarshal(body, &rows); err != nil {
			return failf("not a ranking: %v", err)
		}
		return CheckOrder(rows, n)
	}
}

// CheckOrder verifies the bottom-N ordering rules on rows.
func CheckOrder(rows []types.Row, n int) error {
	if len(rows) > n {
		return failf("%d rows, asked for %d", len(rows), n)
	}
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		switch {
		case cur.Score < prev.Score:
			return failf("row %d (%s) scores below row %d (%s)", i, cur.Name, i-1, prev.Name)
		case cur.Score == prev.Score && cur.Name > prev.Name:
			return failf("tie at rows %d and %d not ordered by name descending", i-1, i)
		}
	}
	return nil
}
