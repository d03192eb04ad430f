// Package compare checks a remote grouped result against the local one.
package compare

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/vizcheck-cli/internal/aggregate"
)

// DefaultTolerance is the absolute difference below which two values match.
const DefaultTolerance = 1e-10

// Status is the overall outcome of a comparison.
type Status string

const (
	Passed Status = "Passed"
	Failed Status = "Failed"
)

// Options tunes a comparison.
type Options struct {
	// Tolerance is absolute. Values match when |local-remote| < Tolerance.
	// Zero or negative means DefaultTolerance.
	Tolerance float64
}

func (o Options) tolerance() float64 {
	if o.Tolerance <= 0 || math.IsNaN(o.Tolerance) {
		return DefaultTolerance
	}
	return o.Tolerance
}

// Record is the comparison of one group key. A side that lacks the key has
// value 0 and its presence flag false.
type Record struct {
	Key           string  `json:"label"`
	Local         float64 `json:"expected"`
	Remote        float64 `json:"actual"`
	LocalPresent  bool    `json:"inLocal"`
	RemotePresent bool    `json:"inRemote"`
	Match         bool    `json:"match"`
}

// Result holds one record per key from either side.
type Result struct {
	Records   []Record `json:"records"`
	Status    Status   `json:"status"`
	Tolerance float64  `json:"tolerance"`
}

// Compare matches remote against local. Records list local keys in local
// order followed by keys only the remote has, in remote order. Status is
// Passed only when every record matches; no records at all also passes.
func Compare(local, remote *aggregate.Grouped, opts Options) *Result {
	tol := opts.tolerance()
	res := &Result{Status: Passed, Tolerance: tol}
	if local == nil {
		local = &aggregate.Grouped{}
	}
	if remote == nil {
		remote = &aggregate.Grouped{}
	}
	add := func(r Record) {
		r.Match = r.LocalPresent && r.RemotePresent && math.Abs(r.Local-r.Remote) < tol
		if !r.Match {
			res.Status = Failed
		}
		res.Records = append(res.Records, r)
	}
	for _, k := range local.Keys() {
		lv, _ := local.Get(k)
		rv, inRemote := remote.Get(k)
		add(Record{Key: k, Local: lv, Remote: rv, LocalPresent: true, RemotePresent: inRemote})
	}
	for _, k := range remote.Keys() {
		if _, inLocal := local.Get(k); inLocal {
			continue
		}
		rv, _ := remote.Get(k)
		add(Record{Key: k, Remote: rv, RemotePresent: true})
	}
	return res
}

// Mismatches returns the records that did not match.
func (r *Result) Mismatches() []Record {
	var out []Record
	for _, rec := range r.Records {
		if !rec.Match {
			out = append(out, rec)
		}
	}
	return out
}

// Remarks lists mismatches one per line, or "No issues".
func (r *Result) Remarks() string {
	var lines []string
	for _, rec := range r.Mismatches() {
		lines = append(lines, fmt.Sprintf("Mismatch - Label: %s, Expected: %s, Actual: %s",
			rec.Key, sideValue(rec.Local, rec.LocalPresent), sideValue(rec.Remote, rec.RemotePresent)))
	}
	if len(lines) == 0 {
		return "No issues"
	}
	return strings.Join(lines, "\n")
}

// JSON encodes the result with indentation.
func (r *Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func sideValue(v float64, present bool) string {
	if !present {
		return "missing"
	}
	return formatNumber(v)
}

func formatNumber(v float64) string {
	return fmt.Sprintf("%g", v)
}
