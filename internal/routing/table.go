package routing

import (
	"fmt"
	"io"
	"net/netip"
	"text/tabwriter"

	"github.com/wesleywu/routewatch/internal/routing/types"
	"github.com/wesleywu/routewatch/internal/utils"
)

// WriteTable prints routes as a table with the columns
// Source, Destination, Gateway, Genmask, Metric and Iface
func WriteTable(w io.Writer, routes []types.Route) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "Source\tDestination\tGateway\tGenmask\tMetric\tIface")
	for _, r := range routes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			orDash(addrString(r.Source)),
			addrString(r.Destination),
			addrString(r.Gateway),
			utils.Netmask(r.PrefixLen),
			r.Metric,
			orDash(r.OutIfName))
	}
	return tw.Flush()
}

func addrString(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}
	return a.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
