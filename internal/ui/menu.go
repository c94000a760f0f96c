// Package ui is the interactive terminal front end.
package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/forest-guardian/burnsev/internal/config"
	"github.com/forest-guardian/burnsev/internal/index"
	"github.com/forest-guardian/burnsev/internal/sensor"
)

// Actions are the operations the menu delegates to the command layer.
type Actions struct {
	Run func(configPath string) error
}

type menuOption struct {
	title   string
	handler func(r *bufio.Reader, w io.Writer) error
}

var errExit = errors.New("exit")

// ShowMenu displays the main menu and handles user input until exit.
func ShowMenu(actions Actions) {
	runMenu(stdin, os.Stdout, actions)
}

func runMenu(r *bufio.Reader, w io.Writer, actions Actions) {
	menuOptions := []menuOption{
		{"Run a burn severity analysis from a configuration file", func(r *bufio.Reader, w io.Writer) error {
			PrintWarning("Rasters are written where the configuration's display and export sections point.")
			path := readString(r, "Enter the configuration file path: ")
			if path == "" {
				return fmt.Errorf("configuration path cannot be empty")
			}
			if err := actions.Run(path); err != nil {
				return err
			}
			PrintSuccess("Successful analysis!")
			return nil
		}},
		{"View the list of available sensors", func(r *bufio.Reader, w io.Writer) error {
			ListSensors(w)
			return nil
		}},
		{"View the list of available spectral indices", func(r *bufio.Reader, w io.Writer) error {
			ListFormulas(w)
			return nil
		}},
		{"View the periods of a configuration file", func(r *bufio.Reader, w io.Writer) error {
			return ListPeriods(w, readString(r, "Enter the configuration file path: "))
		}},
		{"Exit the application", func(r *bufio.Reader, w io.Writer) error {
			fmt.Fprintln(w, "Exiting...")
			return errExit
		}},
	}

	for {
		infoColor.Fprintln(w, "===================")
		for i, opt := range menuOptions {
			infoColor.Fprintf(w, "%d. %s\n", i+1, opt.title)
		}

		choice, err := readInt(r, "Please enter your choice: ", 1, len(menuOptions))
		if err != nil {
			PrintError(err.Error())
			if _, peekErr := r.Peek(1); peekErr != nil {
				return
			}
			continue
		}

		if err := menuOptions[choice-1].handler(r, w); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			PrintError(err.Error())
		}
	}
}

func ListSensors(w io.Writer) {
	successColor.Fprintln(w, "Available sensors:")
	for _, p := range sensor.Profiles() {
		listItem(w, "%s  %s (%s, QA band %s, %gm)", p.ID, p.Name, p.Collection, p.QABand, p.ExportScale)
	}
}

func ListFormulas(w io.Writer) {
	successColor.Fprintln(w, "Available spectral indices:")
	for _, f := range index.Formulas() {
		var bands []string
		for _, b := range f.RequiredBands() {
			bands = append(bands, string(b))
		}
		listItem(w, "%s  %s [%s]", f, f.Name(), strings.Join(bands, ", "))
	}
}

func ListPeriods(w io.Writer, configPath string) error {
	f, err := config.Load(configPath)
	if err != nil {
		return err
	}
	periods, err := f.BuildPeriods()
	if err != nil {
		return err
	}
	successColor.Fprintf(w, "Periods of %s:\n", configPath)
	for _, p := range periods {
		listItem(w, "%s", p)
	}
	return nil
}
