package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/user/netcrawl/internal/model"
)

// FormatMarkdown renders a crawl report: summary counts, the errored hosts,
// and a Mermaid diagram of the discovered topology.
func FormatMarkdown(summary *model.CrawlSummary, edges []model.NeighborEdge) string {
	var sb strings.Builder

	sb.WriteString("# Network Crawl Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- Devices: %d\n", summary.Total))
	sb.WriteString(fmt.Sprintf("- Crawled: %d\n", summary.Crawled))
	sb.WriteString(fmt.Sprintf("- Errored: %d\n", summary.Errored))
	sb.WriteString(fmt.Sprintf("- Incomplete: %d\n", summary.Incomplete))
	if summary.Duration > 0 {
		sb.WriteString(fmt.Sprintf("- Duration: %s\n", summary.Duration.Round(time.Second)))
	}
	sb.WriteString("\n")

	if len(summary.Errors) > 0 {
		sb.WriteString("## Errored Devices\n\n")
		sb.WriteString("| Hostname | Reason |\n")
		sb.WriteString("|----------|--------|\n")
		for _, hostErr := range summary.Errors {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", hostErr.Hostname, hostErr.Reason))
		}
		sb.WriteString("\n")
	}

	if len(summary.Claimed) > 0 {
		sb.WriteString("## Incomplete\n\n")
		sb.WriteString("Claimed but never visited (crawl interrupted):\n\n")
		for _, hostname := range summary.Claimed {
			sb.WriteString(fmt.Sprintf("- %s\n", hostname))
		}
		sb.WriteString("\n")
	}

	if len(edges) > 0 {
		sb.WriteString("## Topology\n\n")
		sb.WriteString(GenerateTopologyDiagram(edges))
	}

	return sb.String()
}

// GenerateTopologyDiagram creates a Mermaid graph of discovered adjacencies.
// Reverse edges of already-drawn links are collapsed.
func GenerateTopologyDiagram(edges []model.NeighborEdge) string {
	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("graph LR\n")

	drawn := make(map[string]bool)
	for _, edge := range edges {
		forward := edge.FromHostname + "|" + edge.ToHostname
		reverse := edge.ToHostname + "|" + edge.FromHostname
		if drawn[forward] || drawn[reverse] {
			continue
		}
		drawn[forward] = true

		label := edge.LocalInterface
		if edge.NeighborInterface != "" {
			label += " - " + edge.NeighborInterface
		}
		sb.WriteString(fmt.Sprintf("    %s[%s] ---|%s| %s[%s]\n",
			hostNodeID(edge.FromHostname), edge.FromHostname,
			label,
			hostNodeID(edge.ToHostname), edge.ToHostname))
	}

	sb.WriteString("```\n")
	return sb.String()
}

var nodeIDRe = regexp.MustCompile(`[^a-zA-Z0-9]`)

func hostNodeID(hostname string) string {
	return "n_" + nodeIDRe.ReplaceAllString(hostname, "_")
}
