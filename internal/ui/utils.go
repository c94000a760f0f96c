package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

var (
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgBlue)

	stdin = bufio.NewReader(os.Stdin)
)

// PrintWarning displays a warning message with consistent formatting
func PrintWarning(message string) {
	warnColor.Println("\nWarning:")
	warnColor.Println(message)
}

// PrintError displays an error message with consistent formatting
func PrintError(message string) {
	errorColor.Printf("\nError: %s\n", message)
}

// PrintSuccess displays a success message with consistent formatting
func PrintSuccess(message string) {
	successColor.Printf("\n%s\n", message)
}

// PrintInfo displays an info message with consistent formatting
func PrintInfo(message string) {
	infoColor.Print(message)
}

// ReadString reads a line from stdin with trimming
func ReadString(prompt string) string {
	return readString(stdin, prompt)
}

func readString(r *bufio.Reader, prompt string) string {
	PrintInfo(prompt)
	input, _ := r.ReadString('\n')
	return strings.TrimSpace(input)
}

// ReadInt reads an integer from stdin with validation
func ReadInt(prompt string, min, max int) (int, error) {
	return readInt(stdin, prompt, min, max)
}

func readInt(r *bufio.Reader, prompt string, min, max int) (int, error) {
	input := readString(r, prompt)
	value, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", input)
	}
	if value < min || value > max {
		return 0, fmt.Errorf("value must be between %d and %d", min, max)
	}
	return value, nil
}

func listItem(w io.Writer, format string, args ...interface{}) {
	successColor.Fprintf(w, "- "+format+"\n", args...)
}
