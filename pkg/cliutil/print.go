// Package cliutil provides upsguardctl's terminal output helpers: status
// symbols, colored message lines, and bordered tables.
package cliutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	fail    = color.New(color.FgRed).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
	info    = color.New(color.FgCyan).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()

	checkMark = success("✓")
	cross     = fail("✗")
	bullet    = info("●")
)

func PrintSuccess(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", checkMark, fmt.Sprintf(format, args...))
}

func PrintError(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", cross, fmt.Sprintf(format, args...))
}

func PrintWarning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", warn("⚠"), fmt.Sprintf(format, args...))
}

func PrintInfo(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", bullet, fmt.Sprintf(format, args...))
}

func PrintHeader(title string) {
	fmt.Println()
	fmt.Println(bold(title))
	fmt.Println(strings.Repeat("─", len(title)))
}

// Table renders headers and rows with box-drawing separators.
func Table(headers []string, rows [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetBorder(true)
	table.SetHeaderLine(true)
	table.SetRowLine(false)
	table.SetCenterSeparator("┼")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)

	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

func KeyValueTable(pairs [][2]string) {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	Table([]string{"Field", "Value"}, rows)
}
