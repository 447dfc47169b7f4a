package scoring

import (
	"strconv"
	"strings"

	"github.com/jmgilman/go/errors"
)

// View is one bottom-N leaderboard.
type View struct {
	// Name is the selector used in rank paths.
	Name string
	// Structure names the sorted structure backing the view.
	Structure string
	Extractor Extractor
}

// Views lists every leaderboard in rank-path order.
var Views = []View{
	newView("forks", NumericField("forks")),
	newView("open_issues", NumericField("open_issues")),
	newView("stars", NumericField("stargazers_count")),
	newView("last_updated", TimestampField("updated_at")),
}

func newView(name string, e Extractor) View {
	return View{Name: name, Structure: "Bottom_N_" + name, Extractor: e}
}

// Lookup finds a view by selector.
func Lookup(name string) (View, error) {
	for _, v := range Views {
		if v.Name == name {
			return v, nil
		}
	}
	return View{}, errors.Wrapf(ErrUnknownView, errors.CodeInvalidInput, "unknown view %q", name)
}

// RankPrefix starts every rank path.
const RankPrefix = "/view/bottom/"

// ParseRankPath splits /view/bottom/<N>/<view> into its count and view.
func ParseRankPath(path string) (int, View, error) {
	rest, ok := strings.CutPrefix(path, RankPrefix)
	if !ok {
		return 0, View{}, errors.Newf(errors.CodeInvalidInput, "not a rank path: %s", path)
	}
	count, name, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(name, "/") {
		return 0, View{}, errors.Newf(errors.CodeInvalidInput, "not a rank path: %s", path)
	}
	n, err := strconv.Atoi(count)
	if err != nil || n < 1 {
		return 0, View{}, errors.Newf(errors.CodeInvalidInput, "N must be a positive integer, got %q", count)
	}
	v, err := Lookup(name)
	if err != nil {
		return 0, View{}, err
	}
	return n, v, nil
}
