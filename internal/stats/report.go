package stats

import (
	"fmt"
	"io"
	"sort"
)

// WriteSummary renders the run summary as a plain-text report.
func WriteSummary(w io.Writer, s Summary) {
	marketIDs := make([]int, 0, len(s.Markets))
	for id := range s.Markets {
		marketIDs = append(marketIDs, id)
	}
	sort.Ints(marketIDs)

	for _, id := range marketIDs {
		m := s.Markets[id]
		fmt.Fprintf(w, "market %d: %d trades, volume %d, vwap %s, mean spread %s\n",
			id, m.Trades, m.Volume, m.VWAP.StringFixed(2), m.MeanSpread.StringFixed(2))
	}
	if !s.MeanNBBOSpread.IsZero() {
		fmt.Fprintf(w, "mean nbbo spread: %s\n", s.MeanNBBOSpread.StringFixed(2))
	}
	if !s.MeanFund.IsZero() {
		fmt.Fprintf(w, "mean fundamental: %s\n", s.MeanFund.StringFixed(2))
	}

	roles := make([]string, 0, len(s.Roles))
	for role := range s.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		r := s.Roles[role]
		fmt.Fprintf(w, "role %-4s: %d agents, total payoff %s, mean %s\n",
			role, r.Agents, r.TotalPayoff.StringFixed(0), r.MeanPayoff.StringFixed(2))
	}
}
