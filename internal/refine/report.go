package refine

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Console colors with light/dark terminal support.
var (
	colorSuccess = lipgloss.AdaptiveColor{
		Light: "#059669",
		Dark:  "#10B981",
	}
	colorError = lipgloss.AdaptiveColor{
		Light: "#DC2626",
		Dark:  "#EF4444",
	}
	colorHeading = lipgloss.AdaptiveColor{
		Light: "#5A56E0",
		Dark:  "#7571F9",
	}
	colorMuted = lipgloss.AdaptiveColor{
		Light: "#6B7280",
		Dark:  "#9CA3AF",
	}
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorHeading)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	ruleStyle    = lipgloss.NewStyle().Foreground(colorMuted)
)

const (
	bannerWidth  = 70
	sectionWidth = 40
)

// Reporter renders loop progress to a terminal. All engine output goes
// through it so tests can capture the stream.
type Reporter struct {
	Out io.Writer
}

// NewReporter returns a Reporter writing to out, or stdout when out is nil.
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{Out: out}
}

func (r *Reporter) Printf(format string, args ...any) {
	fmt.Fprintf(r.Out, format, args...)
}

func (r *Reporter) Println(line string) {
	fmt.Fprintln(r.Out, line)
}

// Rule prints the heavy delimiter used around banners.
func (r *Reporter) Rule() {
	fmt.Fprintln(r.Out, ruleStyle.Render(strings.Repeat("=", bannerWidth)))
}

// Section prints the light delimiter used between attempt phases.
func (r *Reporter) Section() {
	fmt.Fprintln(r.Out, ruleStyle.Render(strings.Repeat("-", sectionWidth)))
}

// Banner prints lines framed by heavy rules.
func (r *Reporter) Banner(lines ...string) {
	r.Rule()
	for _, line := range lines {
		fmt.Fprintln(r.Out, headingStyle.Render(line))
	}
	r.Rule()
}

// SuccessBanner prints a framed success line.
func (r *Reporter) SuccessBanner(format string, args ...any) {
	r.Rule()
	fmt.Fprintln(r.Out, successStyle.Render(fmt.Sprintf(format, args...)))
	r.Rule()
}

// FailureBanner prints a framed failure line.
func (r *Reporter) FailureBanner(format string, args ...any) {
	r.Rule()
	fmt.Fprintln(r.Out, failureStyle.Render(fmt.Sprintf(format, args...)))
	r.Rule()
}
