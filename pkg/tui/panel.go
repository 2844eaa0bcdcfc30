package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/usecase/dashboard"
	"github.com/foodlink/foodlink/pkg/usecase/stats"
)

const maxPanelNotifications = 5

var (
	sectionStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).PaddingLeft(1)
)

func renderConversation(messages []*model.Message, renderer *glamour.TermRenderer, width int) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleUser:
			b.WriteString(userStyle.Render("You") + "\n")
			b.WriteString(lipgloss.NewStyle().Width(width).Render(msg.Content) + "\n\n")

		case model.RoleAssistant:
			b.WriteString(botStyle.Render("FoodLink") + "\n")
			b.WriteString(renderMarkdown(renderer, msg.Content) + "\n")

		case model.RoleNotification:
			b.WriteString(noticeStyle.Render("📦 To "+msg.Recipient) + "\n")
			b.WriteString(lipgloss.NewStyle().Width(width).Render(msg.Content) + "\n\n")
		}
	}
	return b.String()
}

func renderMarkdown(renderer *glamour.TermRenderer, content string) string {
	if content == "" {
		return subtleStyle.Render("...") + "\n"
	}
	if renderer == nil {
		return content + "\n"
	}
	out, err := renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

type panelData struct {
	db            *model.Database
	assignments   []*model.Assignment
	notifications []*model.Notification
	selected      int
	now           time.Time
}

func renderPanel(data panelData, width int) string {
	sections := []string{
		renderStats(data.db),
		renderImpact(data.assignments),
		renderAssignments(data.db, data.assignments, data.selected),
		renderNotifications(data.notifications, data.now),
		renderLocations(data.db),
	}
	return panelStyle.Width(width).Render(strings.Join(sections, "\n"))
}

func orNone(s string) string {
	if s == "" {
		return subtleStyle.Render("n/a")
	}
	return s
}

func renderStats(db *model.Database) string {
	st := stats.Derive(db)
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Stats") + "\n")
	fmt.Fprintf(&b, "Most needed:  %s\n", orNone(st.MostCommonMissing))
	fmt.Fprintf(&b, "Most surplus: %s\n", orNone(st.MostCommonExtra))
	fmt.Fprintf(&b, "Top donor:    %s\n", orNone(st.TopDonor))
	return b.String()
}

func renderImpact(assignments []*model.Assignment) string {
	impact := stats.Impact(assignments)
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Impact") + "\n")
	fmt.Fprintf(&b, "%s transfers, %s items redistributed\n",
		humanize.Comma(int64(impact.Transfers)), humanize.Comma(int64(impact.ItemsRedistributed)))
	for _, c := range impact.Categories {
		fmt.Fprintf(&b, "  %-12s %d\n", c.Name, c.Value)
	}
	return b.String()
}

func renderAssignments(db *model.Database, assignments []*model.Assignment, selected int) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Transfers") + "\n")
	if len(assignments) == 0 {
		b.WriteString(subtleStyle.Render("No transfers yet") + "\n")
		return b.String()
	}

	for i, a := range assignments {
		line := fmt.Sprintf("%s → %s (%s: %s)", a.Origin, a.Destination, a.Category, strings.Join(a.Items, ", "))
		if i == selected {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	if selected >= 0 && selected < len(assignments) {
		route, err := dashboard.ResolveRoute(db, assignments[selected])
		if err != nil {
			b.WriteString(subtleStyle.Render("Route unavailable: "+err.Error()) + "\n")
		} else {
			fmt.Fprintf(&b, "Route: %s → %s, %.1f km\n", route.Origin.Data.Address, route.Destination.Data.Address, route.DistanceKm)
		}
	}
	return b.String()
}

func renderNotifications(notifications []*model.Notification, now time.Time) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Notifications") + "\n")
	if len(notifications) == 0 {
		b.WriteString(subtleStyle.Render("None") + "\n")
		return b.String()
	}

	start := max(len(notifications)-maxPanelNotifications, 0)
	for _, n := range notifications[start:] {
		when := humanize.RelTime(n.Timestamp, now, "ago", "from now")
		fmt.Fprintf(&b, "%s %s\n", n.Recipient, subtleStyle.Render(when))
	}
	return b.String()
}

func renderLocations(db *model.Database) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Locations") + "\n")
	if db == nil || db.Locations.Len() == 0 {
		b.WriteString(subtleStyle.Render("Waiting for database") + "\n")
		return b.String()
	}

	for _, l := range db.Locations.All() {
		marker := "·"
		switch l.Kind {
		case model.LocationKindSupplier:
			marker = "▲"
		case model.LocationKindDemander:
			marker = "●"
		}
		fmt.Fprintf(&b, "%s %s (%.4f, %.4f)\n", marker, l.Name, l.Data.Lat, l.Data.Lon)
	}
	return b.String()
}
