package table

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bacalhau-project/sshkit/pkg/logbridge"
	"github.com/bacalhau-project/sshkit/pkg/logger"
	"github.com/bacalhau-project/sshkit/pkg/session"
	"github.com/olekukonko/tablewriter"
)

const (
	PathWidth      = 40
	DirectionWidth = 4
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	if w == nil {
		w = os.Stdout
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

// LevelTable shows how session log levels map onto engine verbosity.
type LevelTable struct {
	table *tablewriter.Table
}

func NewLevelTable(w io.Writer) *LevelTable {
	return &LevelTable{table: newTable(w, []string{"Level", "Engine Verbosity", "Zap Level"})}
}

func (lt *LevelTable) AddLevel(level logbridge.Level) {
	verbosity := logbridge.VerbosityFor(level)
	zapLevel := "-"
	if zl, ok := level.ZapLevel(); ok {
		zapLevel = logger.LevelName(zl)
	}
	lt.table.Append([]string{
		level.String(),
		fmt.Sprintf("%d (%s)", int(verbosity), verbosity),
		zapLevel,
	})
}

func (lt *LevelTable) Render() {
	lt.table.Render()
}

// TransferTable summarizes completed file transfers.
type TransferTable struct {
	table *tablewriter.Table
}

func NewTransferTable(w io.Writer) *TransferTable {
	return &TransferTable{table: newTable(w, []string{"Dir", "Source", "Destination", "Bytes", "Calls"})}
}

// AddTransfer appends a row. direction is "put" or "get".
func (tt *TransferTable) AddTransfer(direction, source, destination string, stats session.TransferStats) {
	bytes, calls := stats.BytesWritten, stats.WriteCalls
	if direction == "get" {
		bytes, calls = stats.BytesRead, stats.ReadCalls
	}
	tt.table.Append([]string{
		truncate(direction, DirectionWidth),
		truncate(source, PathWidth),
		truncate(destination, PathWidth),
		strconv.FormatInt(bytes, 10),
		strconv.Itoa(calls),
	})
}

func (tt *TransferTable) Render() {
	tt.table.Render()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
