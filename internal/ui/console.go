// Package ui prints engine events to the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Console renders leveled log messages with timestamps and colored level
// tags. It satisfies the func(message, level string) logger callback the
// core services accept.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	timeColor    func(a ...interface{}) string
	infoColor    func(a ...interface{}) string
	warnColor    func(a ...interface{}) string
	errorColor   func(a ...interface{}) string
	successColor func(a ...interface{}) string
}

func NewConsole() *Console {
	return &Console{
		out:          os.Stdout,
		timeColor:    color.New(color.FgHiYellow).SprintFunc(),
		infoColor:    color.New(color.FgHiBlue).SprintFunc(),
		warnColor:    color.New(color.FgHiYellow).SprintFunc(),
		errorColor:   color.New(color.FgHiRed).SprintFunc(),
		successColor: color.New(color.FgHiGreen).SprintFunc(),
	}
}

// SetOutput redirects output, mainly for tests.
func (c *Console) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = w
}

// Log prints one message with its level tag. Unknown levels render as info.
func (c *Console) Log(message, level string) {
	tag, paint := c.levelTag(level)

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s] [%s] %s\n",
		c.timeColor(time.Now().Format("15:04:05")), paint(tag), message)
}

func (c *Console) levelTag(level string) (string, func(a ...interface{}) string) {
	switch level {
	case "error":
		return "ERROR", c.errorColor
	case "warning":
		return "WARNING", c.warnColor
	case "success":
		return "OK", c.successColor
	default:
		return "INFO", c.infoColor
	}
}

// Banner prints the startup banner with the listen address.
func (c *Console) Banner(version, addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", c.successColor("dualstrike"), version)
	fmt.Fprintf(c.out, "API listening on %s\n", c.infoColor("http://"+addr))
}
