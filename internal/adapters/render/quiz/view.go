package quiz

import (
	"fmt"
	"math"
	"strings"

	"github.com/bnema/catq/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const progressBarWidth = 30

type viewState struct {
	Snapshot domain.Snapshot
	Cursor   int
	Notice   string
	Spinner  string
	Help     string
}

func renderView(state viewState, s styles) string {
	snapshot := state.Snapshot
	lines := []string{s.title.Render("Adaptive Test")}
	if !snapshot.Identity.IsZero() {
		lines = append(lines, s.header.Render(fmt.Sprintf("identity: %s", snapshot.Identity)))
	}

	lines = append(lines, s.section.Render(renderBody(state, s)))

	if state.Notice != "" {
		lines = append(lines, s.section.Render(s.notice.Render(state.Notice)))
	}
	if state.Help != "" {
		lines = append(lines, s.section.Render(s.help.Render(state.Help)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderBody(state viewState, s styles) string {
	snapshot := state.Snapshot

	switch {
	case snapshot.Status == domain.StatusIdle:
		return s.empty.Render("Not logged in. Run `catq login --user ID` to begin.")
	case snapshot.Status == domain.StatusFinished:
		return renderFinished(snapshot, s)
	case snapshot.Err != nil && snapshot.CurrentItem != nil:
		return lipgloss.JoinVertical(lipgloss.Left,
			renderFailure(snapshot, s),
			"",
			renderItem(state, s),
		)
	case snapshot.Err != nil:
		return renderFailure(snapshot, s)
	case snapshot.NoItem:
		return lipgloss.JoinVertical(lipgloss.Left,
			s.empty.Render("No question available."),
			s.detail.Render("Press enter to try again."),
		)
	case snapshot.Status == domain.StatusAwaitingAnswer && snapshot.CurrentItem != nil:
		return renderItem(state, s)
	case snapshot.Status == domain.StatusSubmitting:
		return fmt.Sprintf("%s %s", state.Spinner, "Submitting answer...")
	default:
		return fmt.Sprintf("%s %s", state.Spinner, "Loading questions...")
	}
}

func renderFailure(snapshot domain.Snapshot, s styles) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		s.warning.Render("Request failed: "+snapshot.Err.Error()),
		s.detail.Render(retryHint(snapshot)),
	)
}

func retryHint(snapshot domain.Snapshot) string {
	if snapshot.Status == domain.StatusAwaitingAnswer {
		return "Your answer was kept. Press enter to submit again."
	}
	return "Press enter to retry."
}

func renderItem(state viewState, s styles) string {
	snapshot := state.Snapshot
	item := snapshot.CurrentItem

	progress := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.header.Render(fmt.Sprintf("Question %d of %d", snapshot.ItemIndex+1, snapshot.ItemCap)),
		" ",
		renderProgressBar(snapshot.ProgressPercent(), progressBarWidth, s),
	)

	lines := []string{progress, s.section.Render(s.stem.Render(item.Stem))}
	for i, option := range item.Options {
		lines = append(lines, renderOption(option, i == state.Cursor, option.Label == snapshot.SelectedOption, s))
	}

	lines = append(lines, s.section.Render(s.detail.Render(fmt.Sprintf("current θ: %.2f", snapshot.Theta))))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderOption(option domain.Option, focused bool, selected bool, s styles) string {
	pointer := "  "
	if focused {
		pointer = s.cursor.Render("> ")
	}

	mark := "( )"
	style := s.option
	if selected {
		mark = "(•)"
		style = s.selected
	}

	return pointer + style.Render(fmt.Sprintf("%s %s) %s", mark, option.Label, option.Text))
}

func renderFinished(snapshot domain.Snapshot, s styles) string {
	reason := "The assessment service ended the test."
	if snapshot.FinishReason == domain.FinishReasonCap {
		reason = fmt.Sprintf("You reached the %d question limit.", snapshot.ItemCap)
	}

	body := lipgloss.JoinVertical(lipgloss.Center,
		s.title.Render("Test finished!"),
		s.detail.Render("Thank you for taking the adaptive test."),
		"",
		fmt.Sprintf("You answered %d correctly.", snapshot.CorrectCount),
		fmt.Sprintf("Estimated level (θ): %.2f", snapshot.Theta),
		"",
		s.detail.Render(reason),
		s.help.Render("Press enter to finish and start over."),
	)
	return s.card.Render(body)
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	done := clampPercent(percent) / 100.0
	filled := int(math.Round(float64(width) * done))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
