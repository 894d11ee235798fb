package importer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"edrg/internal/catalog"
)

// parseMaxCap reads the storage-capacity column, which comes as a number or
// as text: "ND" (no data, 0), a range "12-15" (lower bound), or "4 t".
func parseMaxCap(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return roundNonNegative(n, "max_cap")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("max_cap: want number or string, got %s", raw)
	}
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, "ND"):
		return 0, nil
	case strings.Contains(s, "-"):
		s = strings.TrimSpace(s[:strings.Index(s, "-")])
	case strings.HasSuffix(s, " t"):
		s = strings.TrimSpace(strings.TrimSuffix(s, " t"))
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("max_cap: cannot parse %q", s)
	}
	return roundNonNegative(n, "max_cap")
}

func roundNonNegative(v float64, field string) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: not a finite number", field)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s: negative value %v", field, v)
	}
	return catalog.RoundHalfUp(v), nil
}

func finite(field string, vs ...float64) error {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: not a finite number", field)
		}
	}
	return nil
}
