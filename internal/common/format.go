package common

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultWidth is the report width used by the command-line tools.
const DefaultWidth = 80

// ReportField is one labelled line inside a user box.
type ReportField struct {
	Label string
	Value string
}

func rule(char string, width int) string {
	return strings.Repeat(char, width)
}

// PrintHeader prints a report title between two rules.
func PrintHeader(title string, width int) {
	fmt.Println("\n" + rule("=", width))
	fmt.Println(title)
	fmt.Println(rule("=", width))
}

// PrintFooter prints a closing summary line between two rules.
func PrintFooter(message string, width int) {
	fmt.Println("\n" + rule("=", width))
	fmt.Println(message)
	fmt.Println(rule("=", width) + "\n")
}

// PrintUserBox prints one user's tier and connection state followed by
// fields in a box-drawn list.
func PrintUserBox(user UserInfo, fields []ReportField, width int) {
	FprintUserBox(os.Stdout, user, fields, width)
}

func FprintUserBox(w io.Writer, user UserInfo, fields []ReportField, width int) {
	fmt.Fprintf(w, "\n┌─ User: %s\n", user.Id)
	fmt.Fprintf(w, "│  Tier: %s  Connected: %t\n", user.Tier, user.IsAuthenticated)
	fmt.Fprintln(w, "├"+rule("─", width-2))

	labelWidth := 0
	for _, f := range fields {
		if len(f.Label) > labelWidth {
			labelWidth = len(f.Label)
		}
	}
	for i, f := range fields {
		prefix := "│  "
		if i == len(fields)-1 {
			prefix = "└  "
		}
		fmt.Fprintf(w, "%s %-*s : %s\n", prefix, labelWidth, f.Label, f.Value)
	}
}
