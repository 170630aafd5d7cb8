package main

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the contents of the index",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("stats", err)
	}
	defer s.Close()

	stats := CLIStats{KindCounts: map[string]int{}}

	if err := s.DB().QueryRow("SELECT COUNT(*) FROM files").Scan(&stats.FileCount); err != nil {
		return outputError("stats", err)
	}
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM symbols").Scan(&stats.SymbolCount); err != nil {
		return outputError("stats", err)
	}
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM refs").Scan(&stats.RefCount); err != nil {
		return outputError("stats", err)
	}

	rows, err := s.DB().Query("SELECT kind, COUNT(*) FROM symbols GROUP BY kind")
	if err != nil {
		return outputError("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return outputError("stats", err)
		}
		stats.KindCounts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return outputError("stats", err)
	}

	return outputResult(CLIResult{Command: "stats", Results: stats})
}
